package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"propsync/models"
	"propsync/storage"
)

type fakeStatus struct {
	lastAll time.Time
	stale   map[models.Provider]int
	kinds   []string
}

func (f *fakeStatus) GetLastRunTime(ctx context.Context, kind string) (time.Time, error) {
	f.kinds = append(f.kinds, kind)
	if kind == "all" {
		return f.lastAll, nil
	}
	return time.Time{}, nil
}

func (f *fakeStatus) CountStale(ctx context.Context, p models.Provider, cutoff time.Time) (int, error) {
	return f.stale[p], nil
}

func TestPrintStatus_ReadsDomainStore(t *testing.T) {
	queue, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	defer queue.Close()
	if _, err := queue.EnqueueCommand(models.CmdSyncAll, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	store := &fakeStatus{
		lastAll: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		stale:   map[models.Provider]int{models.ProviderMyHome: 3, models.ProviderDaft: 7},
	}
	var out bytes.Buffer
	printStatus(context.Background(), &out, store, queue, 24*time.Hour)

	got := out.String()
	for _, want := range []string{
		"last all sync: 2024-05-01T09:00:00Z",
		"last agency sync: never",
		string(models.ProviderMyHome),
		"3 stale records",
		"7 stale records",
		"pending commands: 1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in status output:\n%s", want, got)
		}
	}
	if len(store.kinds) != 2 {
		t.Fatalf("expected both run kinds read from the domain store, got %v", store.kinds)
	}
}
