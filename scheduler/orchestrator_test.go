package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"propsync/models"
)

type fakeSyncer struct {
	mu        sync.Mutex
	allCalls  int
	agencyIDs []int64
	forced    bool
	block     chan struct{}
	started   chan struct{}
	err       error
}

func (f *fakeSyncer) SyncAgency(ctx context.Context, agencyID int64, force bool) (*models.AgencySyncResult, error) {
	f.mu.Lock()
	f.agencyIDs = append(f.agencyIDs, agencyID)
	f.forced = force
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return models.NewAgencySyncResult(&models.Agency{ID: agencyID, Name: "Galway Homes"}), nil
}

func (f *fakeSyncer) SyncAll(ctx context.Context, force bool) ([]*models.AgencySyncResult, error) {
	f.mu.Lock()
	f.allCalls++
	f.forced = force
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	result := models.NewAgencySyncResult(&models.Agency{ID: 1})
	result.Sources[models.ProviderDaft].Synced = 3
	return []*models.AgencySyncResult{result}, nil
}

func (f *fakeSyncer) counts() (int, []int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allCalls, append([]int64(nil), f.agencyIDs...), f.forced
}

type fakeMarket struct {
	modes []string
}

func (f *fakeMarket) Run(ctx context.Context, mode string) (*models.MarketScrapeResult, error) {
	f.modes = append(f.modes, mode)
	return &models.MarketScrapeResult{Mode: mode, Listings: 4, Added: 1}, nil
}

func TestOrchestrator_PauseSkipsRuns(t *testing.T) {
	syncer := &fakeSyncer{}
	market := &fakeMarket{}
	o := NewOrchestrator(syncer, market)
	ctx := context.Background()

	if err := o.HandleCommand(ctx, models.CmdPause, nil); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if !o.IsPaused() {
		t.Fatal("expected paused")
	}
	o.RunAll(ctx, false)
	o.ScrapeDaft(ctx, "full")
	if all, _, _ := syncer.counts(); all != 0 || len(market.modes) != 0 {
		t.Fatalf("expected no runs while paused, got %d syncs and %v scrapes", all, market.modes)
	}

	o.HandleCommand(ctx, models.CmdResume, nil)
	if err := o.RunAll(ctx, true); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if all, _, forced := syncer.counts(); all != 1 || !forced {
		t.Fatalf("expected one forced sync, got %d (force=%v)", all, forced)
	}
}

func TestOrchestrator_Commands(t *testing.T) {
	syncer := &fakeSyncer{}
	market := &fakeMarket{}
	o := NewOrchestrator(syncer, market)
	ctx := context.Background()

	if err := o.HandleCommand(ctx, models.CmdSyncAgency, &models.CommandParams{AgencyID: 7, ForceRefresh: true}); err != nil {
		t.Fatalf("sync_agency failed: %v", err)
	}
	_, ids, forced := syncer.counts()
	if len(ids) != 1 || ids[0] != 7 || !forced {
		t.Fatalf("unexpected agency sync %v force=%v", ids, forced)
	}

	if err := o.HandleCommand(ctx, models.CmdSyncAgency, &models.CommandParams{}); err == nil {
		t.Fatal("expected an error without agency_id")
	}

	o.HandleCommand(ctx, models.CmdScrapeDaft, nil)
	o.HandleCommand(ctx, models.CmdScrapeDaft, &models.CommandParams{Mode: "full"})
	if len(market.modes) != 2 || market.modes[0] != "incremental" || market.modes[1] != "full" {
		t.Fatalf("unexpected scrape modes %v", market.modes)
	}

	if err := o.HandleCommand(ctx, models.CommandType("reboot"), nil); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestOrchestrator_SyncErrorWrapped(t *testing.T) {
	boom := errors.New("db down")
	o := NewOrchestrator(&fakeSyncer{err: boom}, nil)

	err := o.RunAll(context.Background(), false)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := o.ScrapeDaft(context.Background(), "full"); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}
}

func TestOrchestrator_SkipsOverlappingRun(t *testing.T) {
	syncer := &fakeSyncer{block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := NewOrchestrator(syncer, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- o.RunAll(ctx, false) }()

	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	if err := o.RunAgency(ctx, 3, false); err != nil {
		t.Fatalf("expected overlapping run to be skipped quietly, got %v", err)
	}
	close(syncer.block)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	if _, ids, _ := syncer.counts(); len(ids) != 0 {
		t.Fatalf("expected agency sync skipped, got %v", ids)
	}
}

func TestOrchestrator_MarshalStatus(t *testing.T) {
	o := NewOrchestrator(&fakeSyncer{}, &fakeMarket{})
	o.HandleCommand(context.Background(), models.CmdPause, nil)

	data, err := o.MarshalStatus()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"daft_enabled":true,"paused":true}` {
		t.Fatalf("unexpected status %s", data)
	}
}

func TestOrchestrator_RefreshAgencyRespectsPauseAndRuns(t *testing.T) {
	syncer := &fakeSyncer{block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := NewOrchestrator(syncer, nil)
	ctx := context.Background()

	o.HandleCommand(ctx, models.CmdPause, nil)
	if _, err := o.RefreshAgency(ctx, 1); !errors.Is(err, models.ErrSyncPaused) {
		t.Fatalf("expected ErrSyncPaused, got %v", err)
	}
	o.HandleCommand(ctx, models.CmdResume, nil)

	done := make(chan error, 1)
	go func() { done <- o.RunAll(ctx, false) }()
	<-syncer.started

	if _, err := o.RefreshAgency(ctx, 1); !errors.Is(err, models.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	close(syncer.block)
	<-done

	result, err := o.RefreshAgency(ctx, 1)
	if err != nil || result == nil {
		t.Fatalf("expected refresh to run, got %v (%v)", result, err)
	}
	if _, ids, forced := syncer.counts(); len(ids) != 1 || forced {
		t.Fatalf("expected one unforced agency sync, got %v force=%v", ids, forced)
	}
}
