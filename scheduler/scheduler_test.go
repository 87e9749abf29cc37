package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"propsync/config"
	"propsync/models"
	"propsync/storage"
)

type countingTrigger struct {
	n int
}

func (c *countingTrigger) Trigger() { c.n++ }

func newQueue(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "propsync.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestScheduler_ProcessCommands(t *testing.T) {
	store := newQueue(t)
	syncer := &fakeSyncer{}
	market := &fakeMarket{}
	s := New(config.SchedulerConfig{}, NewOrchestrator(syncer, market), store)
	refresh := &countingTrigger{}
	s.SetRefreshWorker(refresh)

	store.EnqueueCommand(models.CmdSyncAgency, &models.CommandParams{AgencyID: 4})
	store.EnqueueCommand(models.CmdRefresh, nil)
	store.EnqueueCommand(models.CmdScrapeDaft, &models.CommandParams{Mode: "full"})
	store.EnqueueCommand(models.CmdSyncAgency, nil) // invalid, still consumed

	if n := s.processCommands(context.Background()); n != 4 {
		t.Fatalf("expected 4 commands processed, got %d", n)
	}

	_, ids, _ := syncer.counts()
	if len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("unexpected agency syncs %v", ids)
	}
	if refresh.n != 1 {
		t.Fatalf("expected refresh triggered once, got %d", refresh.n)
	}
	if len(market.modes) != 1 || market.modes[0] != "full" {
		t.Fatalf("unexpected scrape modes %v", market.modes)
	}

	pending, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected queue drained, got %+v", pending)
	}
}

func TestScheduler_PauseCommand(t *testing.T) {
	store := newQueue(t)
	syncer := &fakeSyncer{}
	o := NewOrchestrator(syncer, nil)
	s := New(config.SchedulerConfig{}, o, store)

	store.EnqueueCommand(models.CmdPause, nil)
	store.EnqueueCommand(models.CmdSyncAll, nil)
	s.processCommands(context.Background())

	if !o.IsPaused() {
		t.Fatal("expected orchestrator paused")
	}
	if all, _, _ := syncer.counts(); all != 0 {
		t.Fatalf("expected sync_all skipped while paused, got %d", all)
	}
}

func TestScheduler_InvalidCron(t *testing.T) {
	store := newQueue(t)
	s := New(config.SchedulerConfig{Cron: "not a cron"}, NewOrchestrator(&fakeSyncer{}, nil), store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected invalid cron error")
	}
}

func TestScheduler_DaftScrapeMode(t *testing.T) {
	now := time.Date(2024, 5, 20, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last *models.MarketScrapeResult
		want string
	}{
		{"never scraped", nil, "full"},
		{"recent full", &models.MarketScrapeResult{Mode: "full", CompletedAt: now.Add(-48 * time.Hour)}, "incremental"},
		{"last was incremental", &models.MarketScrapeResult{Mode: "incremental", CompletedAt: now.Add(-time.Hour)}, "full"},
		{"full over a week old", &models.MarketScrapeResult{Mode: "full", CompletedAt: now.Add(-8 * 24 * time.Hour)}, "full"},
	}

	for _, tt := range tests {
		store := newQueue(t)
		if tt.last != nil {
			if err := store.InsertMarketScrapeLog(tt.last); err != nil {
				t.Fatalf("%s: insert log: %v", tt.name, err)
			}
		}
		s := New(config.SchedulerConfig{}, NewOrchestrator(&fakeSyncer{}, &fakeMarket{}), store)
		s.now = func() time.Time { return now }

		if got := s.daftScrapeMode(); got != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

type chanTrigger chan struct{}

func (c chanTrigger) Trigger() { c <- struct{}{} }

func TestScheduler_RefreshQueuedBeforeStartReachesWorker(t *testing.T) {
	store := newQueue(t)
	store.EnqueueCommand(models.CmdRefresh, nil)

	s := New(config.SchedulerConfig{}, NewOrchestrator(&fakeSyncer{}, nil), store)
	s.pollInterval = 10 * time.Millisecond
	triggered := make(chanTrigger, 1)
	s.SetRefreshWorker(triggered)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected queued refresh to trigger the worker")
	}
}
