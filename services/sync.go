package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"propsync/config"
	"propsync/models"
	"propsync/providers"
	"propsync/reconcile"
	"propsync/scraper"
)

// FeedLister lists an agency's internal feed.
type FeedLister interface {
	ListAll(ctx context.Context, uniqueKey string) ([]models.Tree, error)
}

type RunStore interface {
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinishSyncRun(ctx context.Context, run *models.SyncRun) error
}

type RunLogger interface {
	Log(runID string, level models.LogLevel, message, source string) error
}

const (
	skipNoProperties    = "No properties"
	skipNoUniqueKey     = "No unique key"
	skipInvalidResponse = "Invalid response"
	skipNoFeed          = "No feed configured"
)

var skipNoCredential = map[models.Provider]string{
	models.ProviderDaft:     "No Daft API key",
	models.ProviderMyHome:   "No MyHome API key",
	models.ProviderAcquaint: "No Acquaint site prefix",
}

// SyncService refreshes the raw cache for whole agencies. Properties are
// processed one at a time, each fanning out to its providers.
type SyncService struct {
	agencies   AgencyStore
	properties PropertyStore
	feed       FeedLister
	aggregator *Aggregator
	pacing     config.SyncConfig
	runs       RunStore
	logger     RunLogger
	metrics    *Metrics
	newPacer   func() *scraper.Pacer
}

func NewSyncService(agencies AgencyStore, properties PropertyStore, feed FeedLister, aggregator *Aggregator, pacing config.SyncConfig) *SyncService {
	s := &SyncService{
		agencies:   agencies,
		properties: properties,
		feed:       feed,
		aggregator: aggregator,
		pacing:     pacing,
	}
	s.newPacer = func() *scraper.Pacer {
		return scraper.NewPacer(
			time.Duration(s.pacing.DelayMS)*time.Millisecond,
			s.pacing.PauseEvery,
			time.Duration(s.pacing.PauseMS)*time.Millisecond,
		)
	}
	return s
}

// SetRunStore enables run records and persisted run logs.
func (s *SyncService) SetRunStore(runs RunStore, logger RunLogger) {
	s.runs = runs
	s.logger = logger
}

func (s *SyncService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// SyncAgency refreshes every property of one agency.
func (s *SyncService) SyncAgency(ctx context.Context, agencyID int64, force bool) (*models.AgencySyncResult, error) {
	agency, err := s.agencies.GetAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("get agency: %w", err)
	}
	if agency == nil {
		return nil, fmt.Errorf("%w: %d", ErrAgencyNotFound, agencyID)
	}

	run := s.startRun(ctx, "agency", &agency.ID)
	result, err := s.syncAgency(ctx, run, agency, force, s.newPacer())
	if result != nil {
		synced, errs := result.Totals()
		run.Synced, run.Errors = synced, errs
	}
	s.finishRun(ctx, run, err)
	return result, err
}

// SyncAll refreshes every agency in turn. A failing agency is logged and skipped.
func (s *SyncService) SyncAll(ctx context.Context, force bool) ([]*models.AgencySyncResult, error) {
	agencies, err := s.agencies.ListAgencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}

	run := s.startRun(ctx, "all", nil)
	s.log(run, models.LogLevelInfo, fmt.Sprintf("Starting sync of %d agencies", len(agencies)), "sync")

	pacer := s.newPacer()
	var results []*models.AgencySyncResult
	var runErr error
	for i := range agencies {
		agency := &agencies[i]
		result, err := s.syncAgency(ctx, run, agency, force, pacer)
		if result != nil {
			results = append(results, result)
			synced, errs := result.Totals()
			run.Synced += synced
			run.Errors += errs
		}
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			run.Skipped++
			s.log(run, models.LogLevelError, fmt.Sprintf("Agency %s failed: %v", agency.Name, err), agency.UniqueKey)
		}
	}

	s.finishRun(ctx, run, runErr)
	return results, runErr
}

func (s *SyncService) syncAgency(ctx context.Context, run *models.SyncRun, agency *models.Agency, force bool, pacer *scraper.Pacer) (*models.AgencySyncResult, error) {
	result := models.NewAgencySyncResult(agency)
	s.log(run, models.LogLevelInfo, fmt.Sprintf("Syncing agency %s", agency.Name), agency.UniqueKey)

	s.ingestFeed(ctx, run, agency, result.Sources[models.ProviderPropertyDrive])

	props, err := s.properties.ListProperties(ctx, agency.ID)
	if err != nil {
		return result, fmt.Errorf("list properties: %w", err)
	}
	result.Properties = len(props)
	if err := s.agencies.UpdateAgencyPropertyCount(ctx, agency.ID); err != nil {
		log.Printf("Warning: failed to update property count for agency %d: %v", agency.ID, err)
	}

	var active []models.Provider
	for _, p := range models.ExternalProviders {
		switch {
		case !agency.HasCredential(p):
			result.Sources[p].Skipped = skipNoCredential[p]
		case len(props) == 0:
			result.Sources[p].Skipped = skipNoProperties
		default:
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return result, nil
	}

	for i := range props {
		snap, err := s.aggregator.Aggregate(ctx, agency, &props[i], force)
		if err != nil {
			for _, p := range active {
				result.Sources[p].Errors++
			}
			s.log(run, models.LogLevelError, fmt.Sprintf("%s: %v", props[i].ListReff, err), agency.UniqueKey)
			continue
		}

		for _, p := range active {
			src := result.Sources[p]
			if snap.Failed(p) {
				src.Errors++
				src.Error = snap.Errors[p]
				s.metrics.observeSync(p, "error")
				s.log(run, models.LogLevelWarn, fmt.Sprintf("%s %s: %s", p, snap.ExternalID, snap.Errors[p]), agency.UniqueKey)
				continue
			}
			src.Synced++
			s.metrics.observeSync(p, "synced")
		}

		if err := pacer.Wait(ctx); err != nil {
			return result, err
		}
	}

	synced, errs := result.Totals()
	s.log(run, models.LogLevelInfo,
		fmt.Sprintf("Agency %s: %d properties, %d synced, %d errors", agency.Name, len(props), synced, errs),
		agency.UniqueKey)
	return result, nil
}

// ingestFeed upserts the agency's internal feed into the property store.
func (s *SyncService) ingestFeed(ctx context.Context, run *models.SyncRun, agency *models.Agency, src *models.SourceResult) {
	if s.feed == nil {
		src.Skipped = skipNoFeed
		return
	}
	key := agency.Credential(models.ProviderPropertyDrive)
	if key == "" {
		src.Skipped = skipNoUniqueKey
		return
	}

	items, err := s.feed.ListAll(ctx, key)
	if err != nil {
		src.Skipped = skipInvalidResponse
		src.Error = providers.Reason(err)
		s.log(run, models.LogLevelWarn, fmt.Sprintf("Feed for %s: %s", agency.Name, src.Error), agency.UniqueKey)
		return
	}
	if len(items) == 0 {
		src.Skipped = skipNoProperties
		return
	}

	for _, item := range items {
		reff := providers.ListReff(item)
		if reff == "" {
			src.Errors++
			s.metrics.observeSync(models.ProviderPropertyDrive, "error")
			continue
		}

		prop := &models.Property{
			AgencyID: agency.ID,
			ListReff: reff,
			Address:  feedAddress(item),
			Raw:      item,
		}
		if err := s.properties.UpsertProperty(ctx, prop); err != nil {
			src.Errors++
			s.metrics.observeSync(models.ProviderPropertyDrive, "error")
			s.log(run, models.LogLevelError, fmt.Sprintf("Upsert %s: %v", reff, err), agency.UniqueKey)
			continue
		}
		src.Synced++
		s.metrics.observeSync(models.ProviderPropertyDrive, "synced")
	}
}

func feedAddress(item models.Tree) string {
	v, ok := reconcile.Resolve(item, "Address")
	if !ok {
		return ""
	}
	return strings.TrimSpace(reconcile.Stringify(v))
}

func (s *SyncService) startRun(ctx context.Context, kind string, agencyID *int64) *models.SyncRun {
	run := &models.SyncRun{
		ID:        uuid.New(),
		AgencyID:  agencyID,
		Kind:      kind,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if s.runs != nil {
		if err := s.runs.CreateSyncRun(ctx, run); err != nil {
			log.Printf("Warning: failed to create sync run: %v", err)
		}
	}
	return run
}

func (s *SyncService) finishRun(ctx context.Context, run *models.SyncRun, err error) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if err != nil {
		run.Status = models.RunStatusFailed
	}
	s.log(run, models.LogLevelInfo, fmt.Sprintf("Run %s %s: %d synced, %d errors", run.Kind, run.Status, run.Synced, run.Errors), "sync")
	if s.runs != nil {
		if err := s.runs.FinishSyncRun(context.WithoutCancel(ctx), run); err != nil {
			log.Printf("Warning: failed to finish sync run: %v", err)
		}
	}
}

func (s *SyncService) log(run *models.SyncRun, level models.LogLevel, message, source string) {
	log.Printf("[%s] %s: %s", level, source, message)
	if s.logger != nil && run != nil {
		s.logger.Log(run.ID.String(), level, message, source)
	}
}
