package models

import "sort"

// FieldMapping maps one canonical field to a path expression per provider.
// An empty path means the provider does not carry the field.
type FieldMapping struct {
	ID            int64  `json:"id" db:"id" yaml:"id"`
	FieldName     string `json:"field_name" db:"field_name" yaml:"field_name"`
	Order         int    `json:"order" db:"order" yaml:"order"`
	PropertyDrive string `json:"propertydrive" db:"propertydrive" yaml:"propertydrive"`
	AcquaintCRM   string `json:"acquaint_crm" db:"acquaint_crm" yaml:"acquaint_crm"`
	Daft          string `json:"daft" db:"daft" yaml:"daft"`
	MyHome        string `json:"myhome" db:"myhome" yaml:"myhome"`
}

// Path returns the path expression configured for a provider.
func (m *FieldMapping) Path(p Provider) string {
	switch p {
	case ProviderPropertyDrive:
		return m.PropertyDrive
	case ProviderAcquaint:
		return m.AcquaintCRM
	case ProviderDaft:
		return m.Daft
	case ProviderMyHome:
		return m.MyHome
	}
	return ""
}

// SortMappings orders mappings by Order, then ID.
func SortMappings(mappings []FieldMapping) {
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].Order != mappings[j].Order {
			return mappings[i].Order < mappings[j].Order
		}
		return mappings[i].ID < mappings[j].ID
	})
}

// FindMapping returns the mapping with the given field name, or nil.
func FindMapping(mappings []FieldMapping, fieldName string) *FieldMapping {
	for i := range mappings {
		if mappings[i].FieldName == fieldName {
			return &mappings[i]
		}
	}
	return nil
}
