package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdSyncAll    CommandType = "sync_all"
	CmdSyncAgency CommandType = "sync_agency"
	CmdScrapeDaft CommandType = "scrape_daft"
	CmdRefresh    CommandType = "refresh"
	CmdPause      CommandType = "pause"
	CmdResume     CommandType = "resume"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	AgencyID     int64  `json:"agency_id,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
	Mode         string `json:"mode,omitempty"` // daft scrape: full, incremental
}
