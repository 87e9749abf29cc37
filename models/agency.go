package models

import (
	"strings"
	"time"
)

// Agency is an estate agency and the upstream credentials configured for it
type Agency struct {
	ID                 int64     `json:"id" db:"id"`
	UniqueKey          string    `json:"unique_key" db:"unique_key"`
	Name               string    `json:"name" db:"name"`
	PrimarySource      *string   `json:"primary_source" db:"primary_source"` // comma-separated, ordered
	AcquaintSitePrefix string    `json:"acquaint_site_prefix" db:"acquaint_site_prefix"`
	DaftAPIKey         string    `json:"daft_api_key" db:"daft_api_key"`
	MyHomeAPIKey       string    `json:"myhome_api_key" db:"myhome_api_key"`
	TotalProperties    int       `json:"total_properties" db:"total_properties"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Credential returns the credential the agency holds for a provider.
// The internal feed is keyed by the agency's unique key.
func (a *Agency) Credential(p Provider) string {
	if a == nil {
		return ""
	}
	switch p {
	case ProviderPropertyDrive:
		return strings.TrimSpace(a.UniqueKey)
	case ProviderAcquaint:
		return strings.TrimSpace(a.AcquaintSitePrefix)
	case ProviderDaft:
		return strings.TrimSpace(a.DaftAPIKey)
	case ProviderMyHome:
		return strings.TrimSpace(a.MyHomeAPIKey)
	}
	return ""
}

func (a *Agency) HasCredential(p Provider) bool {
	return a.Credential(p) != ""
}

// PrimarySourceCSV returns the raw primary_source value, empty when unset.
func (a *Agency) PrimarySourceCSV() string {
	if a == nil || a.PrimarySource == nil {
		return ""
	}
	return *a.PrimarySource
}
