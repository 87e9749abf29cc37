package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"propsync/cache"
	"propsync/identity"
	"propsync/models"
	"propsync/providers"
	"propsync/reconcile"
)

// CacheStore persists the last fetched record per (agency, external id, provider).
type CacheStore interface {
	GetCached(ctx context.Context, agencyID int64, externalID string, p models.Provider) (*models.RawRecord, error)
	PutCached(ctx context.Context, rec *models.RawRecord) error
}

// Archiver keeps a copy of freshly fetched payloads.
type Archiver interface {
	ArchiveRaw(ctx context.Context, rec *models.RawRecord) error
}

const (
	reasonNoCredential = "no credential"
	reasonNoFetcher    = "no fetcher configured"
)

type apiDatePaths struct {
	created  []string
	modified []string
}

// Upstream creation and modification dates, first present path wins.
var providerDatePaths = map[models.Provider]apiDatePaths{
	models.ProviderPropertyDrive: {created: []string{"date", "AddedDate"}, modified: []string{"Modified"}},
	models.ProviderMyHome:        {created: []string{"CreatedOnDate"}, modified: []string{"ModifiedOnDate"}},
	models.ProviderAcquaint:      {created: []string{"uploaded"}, modified: []string{"updated"}},
	models.ProviderDaft:          {created: []string{"startDate"}},
}

// Aggregator assembles a snapshot of every provider's record for a property,
// reusing fresh cache rows and fetching the rest concurrently.
type Aggregator struct {
	cache          CacheStore
	fetchers       map[models.Provider]providers.Fetcher
	gate           *cache.Gate
	defaultTimeout time.Duration
	timeouts       map[models.Provider]time.Duration
	archive        Archiver
	metrics        *Metrics
	now            func() time.Time
}

func NewAggregator(store CacheStore, fetchers map[models.Provider]providers.Fetcher, gate *cache.Gate, timeout time.Duration) *Aggregator {
	if gate == nil {
		gate = cache.NewGate(cache.DefaultExpiry)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Aggregator{
		cache:          store,
		fetchers:       fetchers,
		gate:           gate,
		defaultTimeout: timeout,
		timeouts:       make(map[models.Provider]time.Duration),
		now:            time.Now,
	}
}

// SetTimeout overrides the fetch timeout for one provider.
func (a *Aggregator) SetTimeout(p models.Provider, d time.Duration) {
	if d > 0 {
		a.timeouts[p] = d
	}
}

func (a *Aggregator) SetArchiver(archive Archiver) {
	a.archive = archive
}

func (a *Aggregator) SetMetrics(m *Metrics) {
	a.metrics = m
}

func (a *Aggregator) timeout(p models.Provider) time.Duration {
	if d, ok := a.timeouts[p]; ok {
		return d
	}
	return a.defaultTimeout
}

// Aggregate never fails because of a provider: unavailable providers are
// recorded in the snapshot's Errors with a reason.
func (a *Aggregator) Aggregate(ctx context.Context, agency *models.Agency, property *models.Property, force bool) (*models.Snapshot, error) {
	if agency == nil || property == nil {
		return nil, fmt.Errorf("aggregate: agency and property are required")
	}

	externalID := identity.ExternalID(property.ListReff, agency.AcquaintSitePrefix)
	snap := models.NewSnapshot(agency.ID, externalID)
	snap.Records[models.ProviderPropertyDrive] = a.internalRecord(agency, property)

	var mu sync.Mutex
	var g errgroup.Group

	for _, p := range models.ExternalProviders {
		if !agency.HasCredential(p) {
			snap.Errors[p] = reasonNoCredential
			a.metrics.observeFetch(p, FetchNoCredential, 0)
			continue
		}
		fetcher := a.fetchers[p]
		if fetcher == nil {
			snap.Errors[p] = reasonNoFetcher
			continue
		}

		p := p
		g.Go(func() error {
			rec, reason := a.lookup(ctx, fetcher, agency, externalID, force)
			mu.Lock()
			defer mu.Unlock()
			if rec != nil {
				snap.Records[p] = rec
			} else {
				snap.Errors[p] = reason
			}
			return nil
		})
	}

	g.Wait()
	return snap, nil
}

func (a *Aggregator) internalRecord(agency *models.Agency, property *models.Property) *models.RawRecord {
	rec := &models.RawRecord{
		AgencyID:    agency.ID,
		ExternalID:  property.ListReff,
		Provider:    models.ProviderPropertyDrive,
		Data:        property.Raw,
		LastFetched: property.UpdatedAt,
	}
	rec.APICreatedAt, rec.APIModifiedAt = ExtractAPIDates(models.ProviderPropertyDrive, property.Raw)
	return rec
}

// lookup returns a record, or nil and the reason the provider is unavailable.
func (a *Aggregator) lookup(ctx context.Context, fetcher providers.Fetcher, agency *models.Agency, externalID string, force bool) (*models.RawRecord, string) {
	p := fetcher.Provider()

	cached, err := a.cache.GetCached(ctx, agency.ID, externalID, p)
	if err != nil {
		log.Printf("Warning: cache read %s/%s failed, fetching: %v", p, externalID, err)
		cached = nil
	}
	if !a.gate.ShouldFetch(cached, force) {
		a.metrics.observeFetch(p, FetchCacheHit, 0)
		return cached, ""
	}

	fctx, cancel := context.WithTimeout(ctx, a.timeout(p))
	defer cancel()

	start := time.Now()
	tree, err := fetcher.Fetch(fctx, agency.Credential(p), externalID)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			a.metrics.observeFetch(p, FetchNotFound, elapsed)
		} else {
			a.metrics.observeFetch(p, FetchUnavailable, elapsed)
		}
		return nil, providers.Reason(err)
	}
	a.metrics.observeFetch(p, FetchFetched, elapsed)

	rec := &models.RawRecord{
		AgencyID:    agency.ID,
		ExternalID:  externalID,
		Provider:    p,
		Data:        tree,
		LastFetched: a.now(),
	}
	rec.APICreatedAt, rec.APIModifiedAt = ExtractAPIDates(p, tree)

	if err := a.cache.PutCached(ctx, rec); err != nil {
		log.Printf("Warning: cache write %s/%s failed: %v", p, externalID, err)
		a.metrics.cacheWriteFailed(p)
	}
	if a.archive != nil {
		if err := a.archive.ArchiveRaw(ctx, rec); err != nil {
			log.Printf("Warning: archive %s/%s failed: %v", p, externalID, err)
		}
	}
	return rec, ""
}

// ExtractAPIDates reads the upstream created and modified timestamps of a payload.
func ExtractAPIDates(p models.Provider, tree models.Tree) (created, modified *time.Time) {
	paths, ok := providerDatePaths[p]
	if !ok || tree == nil {
		return nil, nil
	}
	return firstDate(tree, paths.created), firstDate(tree, paths.modified)
}

func firstDate(tree models.Tree, paths []string) *time.Time {
	for _, path := range paths {
		v, ok := reconcile.Resolve(tree, path)
		if !ok {
			continue
		}
		if t, ok := reconcile.ParseDate(v); ok {
			return &t
		}
	}
	return nil
}
