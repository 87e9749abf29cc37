package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"propsync/models"
	"propsync/scheduler"
)

type fakeAgencies struct {
	list []models.Agency
	err  error
}

func (f *fakeAgencies) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	return f.list, f.err
}

type fakeSyncer struct {
	mu     sync.Mutex
	calls  []int64
	failID int64
	busyID int64
	done   chan struct{}
}

func (f *fakeSyncer) RefreshAgency(ctx context.Context, agencyID int64) (*models.AgencySyncResult, error) {
	if agencyID == f.busyID {
		return nil, models.ErrRunInProgress
	}
	f.mu.Lock()
	f.calls = append(f.calls, agencyID)
	f.mu.Unlock()
	if f.done != nil {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
	if agencyID == f.failID {
		return nil, errors.New("boom")
	}
	result := models.NewAgencySyncResult(&models.Agency{ID: agencyID})
	result.Sources[models.ProviderDaft].Synced = 2
	return result, nil
}

func (f *fakeSyncer) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

func threeAgencies() *fakeAgencies {
	return &fakeAgencies{list: []models.Agency{
		{ID: 1, Name: "Galway Homes", UniqueKey: "gal"},
		{ID: 2, Name: "Cork Lettings", UniqueKey: "cork"},
		{ID: 3, Name: "Dublin Sales", UniqueKey: "dub"},
	}}
}

func TestRefreshWorker_RotatesThroughAgencies(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewRefreshWorker(threeAgencies(), syncer)

	if n := w.processBatch(context.Background(), 2); n != 2 {
		t.Fatalf("expected 2 attempted, got %d", n)
	}
	w.processBatch(context.Background(), 2)

	got := syncer.called()
	want := []int64{1, 2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, got)
		}
	}
}

func TestRefreshWorker_FailureLoggedAndSkipped(t *testing.T) {
	syncer := &fakeSyncer{failID: 2}
	w := NewRefreshWorker(threeAgencies(), syncer)

	var errorLogs int
	w.SetLogger(func(level models.LogLevel, source, message string) {
		if level == models.LogLevelError {
			errorLogs++
			if source != "cork" {
				t.Errorf("expected source cork, got %s", source)
			}
		}
	})

	if n := w.processBatch(context.Background(), 0); n != 3 {
		t.Fatalf("expected every agency attempted, got %d", n)
	}
	if errorLogs != 1 {
		t.Fatalf("expected 1 error log, got %d", errorLogs)
	}
}

func TestRefreshWorker_ListError(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewRefreshWorker(&fakeAgencies{err: errors.New("db down")}, syncer)

	if n := w.processBatch(context.Background(), 5); n != 0 {
		t.Fatalf("expected nothing attempted, got %d", n)
	}
	if len(syncer.called()) != 0 {
		t.Fatal("expected no sync calls")
	}
}

func TestRefreshWorker_TriggerRunsImmediately(t *testing.T) {
	syncer := &fakeSyncer{done: make(chan struct{}, 1)}
	w := NewRefreshWorker(threeAgencies(), syncer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, 1, time.Hour)

	w.Trigger()
	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not run a batch")
	}
}

func TestRefreshWorker_StopsWhenSlotTaken(t *testing.T) {
	syncer := &fakeSyncer{busyID: 2}
	w := NewRefreshWorker(threeAgencies(), syncer)

	if n := w.processBatch(context.Background(), 3); n != 1 {
		t.Fatalf("expected batch to stop after 1 agency, got %d", n)
	}

	// The skipped agency is first in line next time.
	syncer.busyID = 0
	w.processBatch(context.Background(), 1)
	got := syncer.called()
	if len(got) != 2 || got[1] != 2 {
		t.Fatalf("expected agency 2 retried next, got %v", got)
	}
}

func TestRefreshWorker_TriggerIgnoredWhilePaused(t *testing.T) {
	syncer := &fakeSyncer{done: make(chan struct{}, 1)}
	w := NewRefreshWorker(threeAgencies(), syncer)
	w.SetPauseCheck(func() bool { return true })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, 1, time.Hour)

	w.Trigger()
	select {
	case <-syncer.done:
		t.Fatal("trigger ran a batch while paused")
	case <-time.After(200 * time.Millisecond):
	}
}

type blockingSyncer struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	agency  []int64
}

func (b *blockingSyncer) SyncAgency(ctx context.Context, agencyID int64, force bool) (*models.AgencySyncResult, error) {
	b.mu.Lock()
	b.agency = append(b.agency, agencyID)
	b.mu.Unlock()
	return models.NewAgencySyncResult(&models.Agency{ID: agencyID}), nil
}

func (b *blockingSyncer) SyncAll(ctx context.Context, force bool) ([]*models.AgencySyncResult, error) {
	b.started <- struct{}{}
	<-b.release
	return nil, nil
}

func TestRefreshWorker_WaitsForRunningSync(t *testing.T) {
	syncer := &blockingSyncer{started: make(chan struct{}, 1), release: make(chan struct{})}
	orchestrator := scheduler.NewOrchestrator(syncer, nil)
	w := NewRefreshWorker(threeAgencies(), orchestrator)

	done := make(chan error, 1)
	go func() { done <- orchestrator.RunAll(context.Background(), false) }()
	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sync all did not start")
	}

	if n := w.processBatch(context.Background(), 3); n != 0 {
		t.Fatalf("expected no agencies refreshed during a sync, got %d", n)
	}

	close(syncer.release)
	if err := <-done; err != nil {
		t.Fatalf("sync all failed: %v", err)
	}

	if n := w.processBatch(context.Background(), 3); n != 3 {
		t.Fatalf("expected 3 agencies refreshed after the sync, got %d", n)
	}
	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	if len(syncer.agency) != 3 {
		t.Fatalf("expected 3 agency syncs, got %v", syncer.agency)
	}
}
