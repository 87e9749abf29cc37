package reconcile

import (
	"strings"
	"time"

	"propsync/models"
)

// Engine reconciles a property snapshot against the field mapping table.
type Engine struct {
	classifier *Classifier
	now        func() time.Time
}

func NewEngine(classifier *Classifier) *Engine {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Engine{classifier: classifier, now: time.Now}
}

// Reconcile builds one row per mapped field that at least one active provider
// carries. Failed or unconfigured providers are left out of every comparison.
func (e *Engine) Reconcile(mappings []models.FieldMapping, agency *models.Agency, property *models.Property, snap *models.Snapshot) *models.Reconciliation {
	ordered := make([]models.FieldMapping, len(mappings))
	copy(ordered, mappings)
	models.SortMappings(ordered)

	agencyPrimary := ParsePrimarySources(agency.PrimarySourceCSV())
	override := ParsePrimarySources(property.PrimarySourceCSV())
	preference := Preference(agencyPrimary, override)
	columns := DisplayOrder(preference)

	active := make(map[models.Provider]bool, len(columns))
	for _, p := range columns {
		active[p] = IsActive(p, agency, snap)
	}

	result := &models.Reconciliation{
		Columns:      columns,
		Sources:      e.summarize(ordered, columns, active, preference, snap),
		ReconciledAt: e.now(),
	}
	if snap != nil {
		result.AgencyID = snap.AgencyID
		result.ExternalID = snap.ExternalID
	}

	for i := range ordered {
		row, ok := e.reconcileField(&ordered[i], columns, active, agencyPrimary, override, snap)
		if ok {
			result.Rows = append(result.Rows, row)
		}
	}
	return result
}

func (e *Engine) reconcileField(
	mapping *models.FieldMapping,
	columns []models.Provider,
	active map[models.Provider]bool,
	agencyPrimary, override []models.Provider,
	snap *models.Snapshot,
) (models.ReconciledField, bool) {
	values := make(map[models.Provider]any, len(columns))
	var present []Value
	for _, p := range models.CanonicalOrder {
		if !active[p] {
			continue
		}
		v, ok := Resolve(snap.Tree(p), mapping.Path(p))
		if !ok || !IsPresent(v) {
			continue
		}
		values[p] = v
		present = append(present, Value{Provider: p, Value: v})
	}
	if len(present) == 0 {
		return models.ReconciledField{}, false
	}

	row := models.ReconciledField{
		FieldName:   mapping.FieldName,
		IsDateField: IsDateField(mapping.FieldName),
		Primary:     SelectPrimary(present, agencyPrimary, override),
	}
	row.AllEqual = row.IsDateField || e.allEqual(mapping.FieldName, present)
	primaryValue := values[row.Primary]

	for _, p := range columns {
		cell := models.Cell{Provider: p}
		switch {
		case !active[p]:
			cell.State = models.CellInactive
		case values[p] == nil:
			cell.State = models.CellMissing
		default:
			v := values[p]
			cell.State = models.CellPresent
			cell.Value = v
			cell.Display = e.display(row.IsDateField, v)
			cell.IsPrimary = p == row.Primary
			cell.Classification = e.classify(mapping.FieldName, &row, p, v, primaryValue, present)
		}
		row.Cells = append(row.Cells, cell)
	}
	return row, true
}

func (e *Engine) allEqual(fieldName string, present []Value) bool {
	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			if !e.classifier.AreEqual(fieldName, present[i].Value, present[j].Value) {
				return false
			}
		}
	}
	return true
}

func (e *Engine) classify(fieldName string, row *models.ReconciledField, p models.Provider, v, primaryValue any, present []Value) models.Classification {
	if p == row.Primary {
		return models.ClassPrimary
	}
	if row.AllEqual {
		return models.ClassMatchesPrimary
	}

	matches := 0
	for _, other := range present {
		if e.classifier.AreEqual(fieldName, v, other.Value) {
			matches++
		}
	}
	if matches <= 1 {
		return models.ClassUnique
	}
	if !e.classifier.AreEqual(fieldName, v, primaryValue) {
		return models.ClassShared
	}
	return models.ClassMatchesPrimary
}

func (e *Engine) display(isDate bool, v any) string {
	if isDate {
		return FormatDate(v)
	}
	return strings.TrimSpace(Stringify(v))
}

func (e *Engine) summarize(mappings []models.FieldMapping, columns []models.Provider, active map[models.Provider]bool, preference []models.Provider, snap *models.Snapshot) []models.SourceSummary {
	created := models.FindMapping(mappings, FieldCreated)
	modified := models.FindMapping(mappings, FieldLastModified)

	preferred := make(map[models.Provider]bool, len(preference))
	for _, p := range preference {
		preferred[p] = true
	}

	summaries := make([]models.SourceSummary, 0, len(columns))
	for _, p := range columns {
		s := models.SourceSummary{
			Provider:  p,
			Title:     p.Title(),
			Active:    active[p],
			Preferred: preferred[p],
		}
		if snap != nil {
			s.Error = snap.Errors[p]
		}
		if active[p] {
			tree := snap.Tree(p)
			if created != nil {
				if v, ok := Resolve(tree, created.Path(p)); ok && IsPresent(v) {
					s.Created = FormatDate(v)
				}
			}
			if modified != nil {
				if v, ok := Resolve(tree, modified.Path(p)); ok && IsPresent(v) {
					s.LastModified = FormatDate(v)
				}
			}
		}
		summaries = append(summaries, s)
	}
	return summaries
}
