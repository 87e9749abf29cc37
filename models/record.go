package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Tree is a schema-less provider payload. Values are nil, bool, float64,
// string, []any or map[string]any, as produced by encoding/json.
type Tree map[string]any

// ParseTree decodes a JSON object. Anything other than a non-empty object is an error.
func ParseTree(data []byte) (Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("empty object")
	}
	return Tree(obj), nil
}

// RawRecord is one provider's cached representation of a property.
type RawRecord struct {
	AgencyID      int64      `json:"agency_id" db:"agency_id"`
	ExternalID    string     `json:"external_id" db:"external_id"`
	Provider      Provider   `json:"provider" db:"provider"`
	Data          Tree       `json:"raw_data" db:"raw_data"`
	LastFetched   time.Time  `json:"last_fetched" db:"last_fetched"`
	APICreatedAt  *time.Time `json:"api_created_at" db:"api_created_at"`
	APIModifiedAt *time.Time `json:"api_modified_at" db:"api_modified_at"`
}

// Snapshot holds every provider's record for one property at one point in time.
// Errors carries the reason a provider is unavailable for this request.
type Snapshot struct {
	AgencyID   int64                   `json:"agency_id"`
	ExternalID string                  `json:"external_id"`
	Records    map[Provider]*RawRecord `json:"records"`
	Errors     map[Provider]string     `json:"errors,omitempty"`
}

func NewSnapshot(agencyID int64, externalID string) *Snapshot {
	return &Snapshot{
		AgencyID:   agencyID,
		ExternalID: externalID,
		Records:    make(map[Provider]*RawRecord),
		Errors:     make(map[Provider]string),
	}
}

// Tree returns the provider's payload, nil when missing or failed.
func (s *Snapshot) Tree(p Provider) Tree {
	if s == nil {
		return nil
	}
	if _, failed := s.Errors[p]; failed {
		return nil
	}
	if rec := s.Records[p]; rec != nil {
		return rec.Data
	}
	return nil
}

// Failed reports whether the provider was marked unavailable.
func (s *Snapshot) Failed(p Provider) bool {
	if s == nil {
		return true
	}
	_, failed := s.Errors[p]
	return failed
}
