package journal

import (
	"context"
	"testing"
	"time"
)

// ===== Prune phases =====

func TestPruner_PrunesByAge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := testRecord("old-1", now.AddDate(0, 0, -10), false)
	older := testRecord("old-2", now.AddDate(0, 0, -8), false)
	fresh := testRecord("fresh", now.Add(-time.Hour), false)
	for _, rec := range []*Record{old, older, fresh} {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7})

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() = %d, want 2", deleted)
	}

	remaining, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if remaining != 1 {
		t.Errorf("Count() after prune = %d, want 1", remaining)
	}
}

func TestPruner_PrunesByCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		rec := testRecord(string(rune('a'+i)), now.Add(time.Duration(i)*time.Second), false)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 0, MaxRecords: 2})

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Prune() = %d, want 3", deleted)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("kept %d records, want 2", len(got))
	}
	if got[0].ID != "e" || got[1].ID != "d" {
		t.Errorf("surviving IDs = [%s %s], want the two newest [e d]", got[0].ID, got[1].ID)
	}
}

func TestPruner_RunsBothPhases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Insert(ctx, testRecord("stale", now.AddDate(0, 0, -10), false)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		rec := testRecord(string(rune('a'+i)), now.Add(time.Duration(i)*time.Second), false)
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7, MaxRecords: 3})

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	// One removed for age, then one more to reach the count cap.
	if deleted != 2 {
		t.Errorf("Prune() = %d, want 2", deleted)
	}

	remaining, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if remaining != 3 {
		t.Errorf("Count() after prune = %d, want 3", remaining)
	}
}

func TestPruner_NothingToPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("fresh", time.Now(), false)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7, MaxRecords: 100})

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() = %d, want 0", deleted)
	}
}

// ===== Scheduling =====

func TestPruner_StartStop(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7, Schedule: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !pruner.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	pruner.Stop()
	if pruner.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestPruner_StopsOnContextCancel(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, &RetentionConfig{RetentionDays: 7, Schedule: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for pruner.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("pruner still running after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPruner_InvalidSchedule(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, &RetentionConfig{Schedule: "not a cron line"})

	if err := pruner.Start(context.Background()); err == nil {
		t.Error("Start() with invalid schedule succeeded, want error")
		pruner.Stop()
	}
}

func TestPruner_Defaults(t *testing.T) {
	store := newTestStore(t)
	pruner := NewPruner(store, nil)

	if pruner.config.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", pruner.config.RetentionDays)
	}
	if pruner.config.MaxRecords != 0 {
		t.Errorf("MaxRecords = %d, want 0", pruner.config.MaxRecords)
	}
	if pruner.config.Schedule != "0 3 * * *" {
		t.Errorf("Schedule = %q, want %q", pruner.config.Schedule, "0 3 * * *")
	}
}
