package models

import "time"

// Property is the canonical internal ("propertydrive") record for a listing.
// ListReff is the id the other providers are queried with after normalization.
type Property struct {
	ID            int64     `json:"id" db:"id"`
	AgencyID      int64     `json:"agency_id" db:"agency_id"`
	ListReff      string    `json:"list_reff" db:"list_reff"`
	Address       string    `json:"address" db:"address"`
	PrimarySource *string   `json:"primary_source" db:"primary_source"` // property-level override
	Raw           Tree      `json:"raw" db:"raw_data"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PrimarySourceCSV returns the property override, empty when unset.
func (p *Property) PrimarySourceCSV() string {
	if p == nil || p.PrimarySource == nil {
		return ""
	}
	return *p.PrimarySource
}
