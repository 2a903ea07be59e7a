//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"neurowombat/internal/model"
)

func TestSQLiteStoreSummaryAndTrialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "neurowombat.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	summary := model.ExperimentSummary{
		VersionedRecord: Versioned(),
		RunID:           "run-1",
		Network:         "abstract",
		Trials:          3,
		Failures:        1,
		Survival:        2.0 / 3.0,
		CreatedAtUTC:    "2026-02-10T10:00:00Z",
	}
	if err := store.SaveSummary(ctx, summary); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	loaded, ok, err := store.GetSummary(ctx, "run-1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !ok {
		t.Fatal("expected summary run-1")
	}
	if loaded.Network != summary.Network || loaded.Failures != summary.Failures {
		t.Fatalf("unexpected summary loaded: %+v", loaded)
	}

	later := summary
	later.RunID = "run-2"
	later.CreatedAtUTC = "2026-02-10T11:00:00Z"
	if err := store.SaveSummary(ctx, later); err != nil {
		t.Fatalf("save later summary: %v", err)
	}
	list, err := store.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "run-2" {
		t.Fatalf("unexpected list order: %+v", list)
	}

	trials := []model.TrialRecord{
		{VersionedRecord: Versioned(), Trial: 0, Seed: 1, FailureTime: 2, Failed: true, Events: 3},
		{VersionedRecord: Versioned(), Trial: 1, Seed: 2, FailureTime: 10, Events: 8},
	}
	if err := store.SaveTrials(ctx, "run-1", trials); err != nil {
		t.Fatalf("save trials: %v", err)
	}
	loadedTrials, ok, err := store.GetTrials(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get trials: ok=%t err=%v", ok, err)
	}
	if len(loadedTrials) != 2 || loadedTrials[1].Events != 8 {
		t.Fatalf("unexpected trials: %+v", loadedTrials)
	}

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok, err := store.GetSummary(ctx, "run-1"); err != nil || ok {
		t.Fatalf("expected deleted summary: ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if err := store.SaveSummary(context.Background(), model.ExperimentSummary{RunID: "x"}); err == nil {
		t.Fatal("expected not initialized error")
	}
}

func TestNewStoreSQLite(t *testing.T) {
	store, err := NewStore(KindSQLite, filepath.Join(t.TempDir(), "factory.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}
