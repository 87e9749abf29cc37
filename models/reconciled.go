package models

import "time"

// Classification describes how a present value relates to the other sources.
type Classification string

const (
	ClassPrimary        Classification = "primary"
	ClassUnique         Classification = "unique"          // no other source agrees
	ClassShared         Classification = "shared"          // differs from primary, agrees with another source
	ClassMatchesPrimary Classification = "matches_primary" // no highlight
)

// CellState separates "no value" from "source not compared".
type CellState string

const (
	CellPresent  CellState = "present"
	CellMissing  CellState = "missing"  // active source, no value: "not available"
	CellInactive CellState = "inactive" // credential missing or fetch failed
)

type Cell struct {
	Provider       Provider       `json:"provider"`
	Value          any            `json:"value,omitempty"`
	Display        string         `json:"display,omitempty"`
	State          CellState      `json:"state"`
	Classification Classification `json:"classification,omitempty"`
	IsPrimary      bool           `json:"is_primary"`
}

// Highlighted reports whether the cell needs operator attention.
func (c *Cell) Highlighted() bool {
	return c.Classification == ClassUnique || c.Classification == ClassShared
}

// ReconciledField is one output row. It is derived per request and never stored.
type ReconciledField struct {
	FieldName   string   `json:"field_name"`
	IsDateField bool     `json:"is_date_field"`
	AllEqual    bool     `json:"all_equal"`
	Primary     Provider `json:"primary"`
	Cells       []Cell   `json:"cells"`
}

// Cell returns the row's cell for a provider, or nil.
func (f *ReconciledField) Cell(p Provider) *Cell {
	for i := range f.Cells {
		if f.Cells[i].Provider == p {
			return &f.Cells[i]
		}
	}
	return nil
}

// SourceSummary is the per-provider header of a reconciliation.
type SourceSummary struct {
	Provider     Provider `json:"provider"`
	Title        string   `json:"title"`
	Active       bool     `json:"active"`
	Preferred    bool     `json:"preferred"`
	Error        string   `json:"error,omitempty"`
	Created      string   `json:"created,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
}

// Reconciliation is the full field-by-field comparison for one property.
type Reconciliation struct {
	AgencyID     int64             `json:"agency_id"`
	ExternalID   string            `json:"external_id"`
	Columns      []Provider        `json:"columns"`
	Sources      []SourceSummary   `json:"sources"`
	Rows         []ReconciledField `json:"rows"`
	ReconciledAt time.Time         `json:"reconciled_at"`
}

// Row returns the row for a field name, or nil when it was omitted.
func (r *Reconciliation) Row(fieldName string) *ReconciledField {
	for i := range r.Rows {
		if r.Rows[i].FieldName == fieldName {
			return &r.Rows[i]
		}
	}
	return nil
}

// Discrepancies counts highlighted cells across all rows.
func (r *Reconciliation) Discrepancies() int {
	n := 0
	for i := range r.Rows {
		for j := range r.Rows[i].Cells {
			if r.Rows[i].Cells[j].Highlighted() {
				n++
			}
		}
	}
	return n
}
