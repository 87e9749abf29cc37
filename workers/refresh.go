package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"propsync/models"
)

type AgencyLister interface {
	ListAgencies(ctx context.Context) ([]models.Agency, error)
}

// AgencyRefresher syncs one agency unless sync is paused or another run holds
// the sync slot, in which case it returns models.ErrSyncPaused or
// models.ErrRunInProgress.
type AgencyRefresher interface {
	RefreshAgency(ctx context.Context, agencyID int64) (*models.AgencySyncResult, error)
}

// RefreshWorker keeps the raw cache warm by syncing a few agencies per tick,
// rotating through the agency list. Fresh cache rows are reused, so a pass
// only calls providers for expired records.
type RefreshWorker struct {
	agencies  AgencyLister
	syncer    AgencyRefresher
	paused    func() bool
	triggerCh chan struct{}
	logFunc   LogFunc
	next      int
}

func NewRefreshWorker(agencies AgencyLister, syncer AgencyRefresher) *RefreshWorker {
	return &RefreshWorker{
		agencies:  agencies,
		syncer:    syncer,
		paused:    func() bool { return false },
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *RefreshWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// SetPauseCheck makes the worker skip ticks while fn reports true.
func (w *RefreshWorker) SetPauseCheck(fn func() bool) {
	if fn != nil {
		w.paused = fn
	}
}

// Trigger causes the worker to run immediately
func (w *RefreshWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *RefreshWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Refresh worker stopping")
			return
		case <-ticker.C:
			if w.paused() {
				continue
			}
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			if w.paused() {
				log.Println("Refresh worker triggered while paused, skipping")
				continue
			}
			log.Println("Refresh worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

// processBatch syncs up to batchSize agencies, continuing where the previous
// batch stopped. It returns the number of agencies attempted.
func (w *RefreshWorker) processBatch(ctx context.Context, batchSize int) int {
	agencies, err := w.agencies.ListAgencies(ctx)
	if err != nil {
		log.Printf("Refresh: list agencies error: %v", err)
		return 0
	}
	if len(agencies) == 0 {
		return 0
	}
	if batchSize <= 0 || batchSize > len(agencies) {
		batchSize = len(agencies)
	}
	if w.next >= len(agencies) {
		w.next = 0
	}

	var attempted, synced, errs int
	for i := 0; i < batchSize; i++ {
		if ctx.Err() != nil {
			break
		}
		agency := agencies[(w.next+i)%len(agencies)]

		result, err := w.syncer.RefreshAgency(ctx, agency.ID)
		if errors.Is(err, models.ErrRunInProgress) || errors.Is(err, models.ErrSyncPaused) {
			log.Printf("Refresh: stopping batch at %s: %v", agency.Name, err)
			break
		}
		attempted++
		if err != nil {
			log.Printf("Refresh: agency %s failed: %v", agency.Name, err)
			w.logFunc(models.LogLevelError, agency.UniqueKey, fmt.Sprintf("refresh failed: %v", err))
			continue
		}
		s, e := result.Totals()
		synced += s
		errs += e
	}
	w.next = (w.next + attempted) % len(agencies)
	if attempted == 0 {
		return 0
	}

	log.Printf("Refresh: %d agencies, %d records synced, %d errors", attempted, synced, errs)
	w.logFunc(models.LogLevelInfo, "refresh", fmt.Sprintf("%d agencies, %d synced, %d errors", attempted, synced, errs))
	return attempted
}
