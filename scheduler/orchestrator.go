package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"propsync/models"
)

type Syncer interface {
	SyncAgency(ctx context.Context, agencyID int64, force bool) (*models.AgencySyncResult, error)
	SyncAll(ctx context.Context, force bool) ([]*models.AgencySyncResult, error)
}

type MarketScraper interface {
	Run(ctx context.Context, mode string) (*models.MarketScrapeResult, error)
}

// Orchestrator runs bulk syncs and market scrapes, one at a time, and
// applies queued commands.
type Orchestrator struct {
	syncer  Syncer
	market  MarketScraper
	paused  atomic.Bool
	running sync.Mutex
}

func NewOrchestrator(syncer Syncer, market MarketScraper) *Orchestrator {
	return &Orchestrator{
		syncer: syncer,
		market: market,
	}
}

// RunAll syncs every agency unless paused or another run is in progress.
func (o *Orchestrator) RunAll(ctx context.Context, force bool) error {
	if o.paused.Load() {
		log.Println("Sync is paused, skipping run")
		return nil
	}
	if !o.running.TryLock() {
		log.Println("A run is already in progress, skipping")
		return nil
	}
	defer o.running.Unlock()

	results, err := o.syncer.SyncAll(ctx, force)
	if err != nil {
		return fmt.Errorf("sync all: %w", err)
	}
	var synced, errs int
	for _, r := range results {
		s, e := r.Totals()
		synced += s
		errs += e
	}
	log.Printf("Sync all: %d agencies, %d synced, %d errors", len(results), synced, errs)
	return nil
}

func (o *Orchestrator) RunAgency(ctx context.Context, agencyID int64, force bool) error {
	if !o.running.TryLock() {
		log.Printf("A run is already in progress, skipping agency %d", agencyID)
		return nil
	}
	defer o.running.Unlock()

	result, err := o.syncer.SyncAgency(ctx, agencyID, force)
	if err != nil {
		return fmt.Errorf("sync agency %d: %w", agencyID, err)
	}
	synced, errs := result.Totals()
	log.Printf("Sync agency %s: %d properties, %d synced, %d errors", result.AgencyName, result.Properties, synced, errs)
	return nil
}

// RefreshAgency syncs one agency without forcing, for background refreshes.
// It does not wait: ErrSyncPaused or ErrRunInProgress is returned instead.
func (o *Orchestrator) RefreshAgency(ctx context.Context, agencyID int64) (*models.AgencySyncResult, error) {
	if o.paused.Load() {
		return nil, models.ErrSyncPaused
	}
	if !o.running.TryLock() {
		return nil, models.ErrRunInProgress
	}
	defer o.running.Unlock()

	return o.syncer.SyncAgency(ctx, agencyID, false)
}

// ScrapeDaft runs the Daft market scrape in "full" or "incremental" mode.
func (o *Orchestrator) ScrapeDaft(ctx context.Context, mode string) error {
	if o.market == nil {
		return fmt.Errorf("daft market scraper not configured")
	}
	if o.paused.Load() {
		log.Println("Sync is paused, skipping daft scrape")
		return nil
	}
	if !o.running.TryLock() {
		log.Println("A run is already in progress, skipping daft scrape")
		return nil
	}
	defer o.running.Unlock()

	result, err := o.market.Run(ctx, mode)
	if err != nil {
		return fmt.Errorf("daft %s scrape: %w", mode, err)
	}
	log.Printf("Daft %s scrape: %d listings (%d new, %d updated), %d sellers in %s",
		result.Mode, result.Listings, result.Added, result.Updated, result.Sellers, result.Duration.Round(time.Second))
	return nil
}

// HandleCommand applies one queued command. Refresh is handled by the scheduler.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd models.CommandType, params *models.CommandParams) error {
	if params == nil {
		params = &models.CommandParams{}
	}

	switch cmd {
	case models.CmdSyncAll:
		return o.RunAll(ctx, params.ForceRefresh)
	case models.CmdSyncAgency:
		if params.AgencyID == 0 {
			return fmt.Errorf("sync_agency: agency_id is required")
		}
		return o.RunAgency(ctx, params.AgencyID, params.ForceRefresh)
	case models.CmdScrapeDaft:
		mode := params.Mode
		if mode == "" {
			mode = "incremental"
		}
		return o.ScrapeDaft(ctx, mode)
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Sync paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Sync resumed")
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	status := map[string]interface{}{
		"paused":       o.paused.Load(),
		"daft_enabled": o.market != nil,
	}
	return json.Marshal(status)
}
