package reconcile

import (
	"strings"

	"propsync/models"
)

// Value is one provider's present value for a field.
type Value struct {
	Provider models.Provider
	Value    any
}

// ParsePrimarySources turns a comma-separated preference list into providers,
// keeping the listed order. Unknown tokens and repeats are dropped.
func ParsePrimarySources(csv string) []models.Provider {
	var out []models.Provider
	seen := make(map[models.Provider]bool)
	for _, token := range strings.Split(csv, ",") {
		p, ok := models.ParseProvider(token)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Preference returns the effective preference list: a property override wins
// over the agency list when it names at least one provider.
func Preference(agencyPrimary, propertyOverride []models.Provider) []models.Provider {
	if len(propertyOverride) > 0 {
		return propertyOverride
	}
	return agencyPrimary
}

// SelectPrimary picks the authoritative provider for a field. The first
// preferred provider holding a present value wins; otherwise the first present
// value in canonical order. Returns "" when nothing is present.
func SelectPrimary(present []Value, agencyPrimary, propertyOverride []models.Provider) models.Provider {
	has := make(map[models.Provider]bool, len(present))
	for _, v := range present {
		if IsPresent(v.Value) {
			has[v.Provider] = true
		}
	}

	for _, p := range Preference(agencyPrimary, propertyOverride) {
		if has[p] {
			return p
		}
	}

	for _, p := range models.CanonicalOrder {
		if has[p] {
			return p
		}
	}
	return ""
}

// DisplayOrder is the canonical column order with the first preferred
// provider moved to the front. It affects presentation only.
func DisplayOrder(preference []models.Provider) []models.Provider {
	cols := make([]models.Provider, 0, len(models.CanonicalOrder))
	if len(preference) > 0 {
		cols = append(cols, preference[0])
	}
	for _, p := range models.CanonicalOrder {
		if len(preference) > 0 && p == preference[0] {
			continue
		}
		cols = append(cols, p)
	}
	return cols
}
