package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Returned instead of starting a run.
var (
	ErrRunInProgress = errors.New("another run is in progress")
	ErrSyncPaused    = errors.New("sync is paused")
)

// SyncRun records one bulk sync of an agency (or of every agency).
type SyncRun struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	AgencyID   *int64     `json:"agency_id" db:"agency_id"`
	Kind       string     `json:"kind" db:"kind"` // agency, all, daft_market
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at" db:"finished_at"`
	Status     RunStatus  `json:"status" db:"status"`
	Synced     int        `json:"synced" db:"synced"`
	Errors     int        `json:"errors" db:"errors"`
	Skipped    int        `json:"skipped" db:"skipped"`
}

// SourceResult is the per-provider outcome of syncing one agency.
type SourceResult struct {
	Synced  int    `json:"synced"`
	Errors  int    `json:"errors"`
	Skipped string `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AgencySyncResult summarises a sync of one agency across its sources.
type AgencySyncResult struct {
	AgencyID   int64                      `json:"agency_id"`
	AgencyName string                     `json:"agency_name"`
	Properties int                        `json:"properties"`
	Sources    map[Provider]*SourceResult `json:"sources"`
}

func NewAgencySyncResult(a *Agency) *AgencySyncResult {
	r := &AgencySyncResult{
		AgencyID:   a.ID,
		AgencyName: a.Name,
		Sources:    make(map[Provider]*SourceResult),
	}
	for _, p := range CanonicalOrder {
		r.Sources[p] = &SourceResult{}
	}
	return r
}

// Totals sums synced and error counts over all sources.
func (r *AgencySyncResult) Totals() (synced, errors int) {
	for _, s := range r.Sources {
		synced += s.Synced
		errors += s.Errors
	}
	return synced, errors
}
