package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"propsync/models"
)

// Fetch outcomes recorded per provider.
const (
	FetchCacheHit     = "cache_hit"
	FetchFetched      = "fetched"
	FetchNotFound     = "not_found"
	FetchUnavailable  = "unavailable"
	FetchNoCredential = "no_credential"
)

// Metrics holds the Prometheus collectors for fetching, reconciling and syncing.
// A nil *Metrics records nothing.
type Metrics struct {
	ProviderFetches       *prometheus.CounterVec
	ProviderFetchDuration *prometheus.HistogramVec
	CacheWriteErrors      *prometheus.CounterVec
	Reconciliations       prometheus.Counter
	ReconcileDuration     prometheus.Histogram
	Discrepancies         prometheus.Counter
	SyncedProperties      *prometheus.CounterVec
	MarketListings        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProviderFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "propsync_provider_fetches_total",
			Help: "Provider record lookups by outcome",
		}, []string{"provider", "result"}),

		ProviderFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propsync_provider_fetch_duration_seconds",
			Help:    "Duration of upstream provider fetches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider"}),

		CacheWriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "propsync_cache_write_errors_total",
			Help: "Failed raw record cache writes",
		}, []string{"provider"}),

		Reconciliations: factory.NewCounter(prometheus.CounterOpts{
			Name: "propsync_reconciliations_total",
			Help: "Completed property reconciliations",
		}),

		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "propsync_reconcile_duration_seconds",
			Help:    "End-to-end reconciliation duration including fetches",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		Discrepancies: factory.NewCounter(prometheus.CounterOpts{
			Name: "propsync_discrepancies_total",
			Help: "Highlighted cells across reconciliations",
		}),

		SyncedProperties: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "propsync_synced_properties_total",
			Help: "Bulk sync results per source",
		}, []string{"provider", "result"}),

		MarketListings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "propsync_market_listings_total",
			Help: "Daft market listings by outcome",
		}, []string{"result"}),
	}
}

func (m *Metrics) observeFetch(p models.Provider, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderFetches.WithLabelValues(string(p), result).Inc()
	if elapsed > 0 {
		m.ProviderFetchDuration.WithLabelValues(string(p)).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) cacheWriteFailed(p models.Provider) {
	if m == nil {
		return
	}
	m.CacheWriteErrors.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) observeReconcile(r *models.Reconciliation, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
	m.ReconcileDuration.Observe(elapsed.Seconds())
	m.Discrepancies.Add(float64(r.Discrepancies()))
}

func (m *Metrics) observeSync(p models.Provider, result string) {
	if m == nil {
		return
	}
	m.SyncedProperties.WithLabelValues(string(p), result).Inc()
}

// ObserveMarketListing records a scraped Daft listing as added, updated or unchanged.
func (m *Metrics) ObserveMarketListing(result string) {
	if m == nil {
		return
	}
	m.MarketListings.WithLabelValues(result).Inc()
}
