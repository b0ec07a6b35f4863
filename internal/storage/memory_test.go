package storage

import (
	"context"
	"errors"
	"testing"

	"cachega/internal/model"
)

func testRun(id, createdAt string) model.RunRecord {
	return Stamp(model.RunRecord{
		ID:           id,
		CreatedAtUTC: createdAt,
		Config: model.RunConfig{
			PopulationSize: 10,
			CacheSets:      8,
			CacheWays:      2,
			Crossover:      "UX",
			Seed:           7,
		},
		Trace:            []uint32{0x1000, 0x2000, 0x1000},
		State:            "converged",
		Generations:      12,
		BestFitness:      3,
		BestChromosome:   "010011100",
		BestByGeneration: []int{5, 4, 3},
		Converged:        true,
	})
}

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	older := testRun("run-a", "2026-01-01T00:00:00Z")
	newer := testRun("run-b", "2026-01-02T00:00:00Z")
	sameTime := testRun("run-c", "2026-01-02T00:00:00Z")
	for _, run := range []model.RunRecord{older, newer, sameTime} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if loaded.BestChromosome != older.BestChromosome || len(loaded.Trace) != 3 || loaded.Config.Seed != 7 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-c" || runs[1].ID != "run-b" || runs[2].ID != "run-a" {
		t.Fatalf("unexpected run order: %+v", ids(runs))
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("list runs with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-c" {
		t.Fatalf("unexpected limited runs: %+v", ids(limited))
	}

	updated := older
	updated.BestFitness = 1
	if err := store.SaveRun(ctx, updated); err != nil {
		t.Fatalf("update run: %v", err)
	}
	loaded, _, err = store.GetRun(ctx, "run-a")
	if err != nil || loaded.BestFitness != 1 {
		t.Fatalf("expected updated run, got %+v err=%v", loaded, err)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 0, BestFitness: 5, MeanFitness: 7.5, WorstFitness: 11, Diversity: 10, EliteCount: 1},
		{Generation: 1, BestFitness: 4, MeanFitness: 6.25, WorstFitness: 9, Diversity: 8, Stale: 0, EliteCount: 1},
	}
	if err := store.SaveDiagnostics(ctx, "run-a", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetDiagnostics(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%t err=%v", ok, err)
	}
	if len(loadedDiagnostics) != 2 || loadedDiagnostics[1].MeanFitness != 6.25 {
		t.Fatalf("unexpected diagnostics: %+v", loadedDiagnostics)
	}
	if _, ok, err := store.GetDiagnostics(ctx, "run-b"); err != nil || ok {
		t.Fatalf("expected no diagnostics for run-b, ok=%t err=%v", ok, err)
	}
}

func ids(runs []model.RunRecord) []string {
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.ID)
	}
	return out
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), testRun("r", "2026-01-01T00:00:00Z")); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if _, err := store.ListRuns(context.Background(), 0); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestMemoryStoreRejectsUnversionedRuns(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := testRun("r", "2026-01-01T00:00:00Z")
	run.SchemaVersion = 0
	if err := store.SaveRun(context.Background(), run); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := testRun("r", "2026-01-01T00:00:00Z")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run.Trace[0] = 0xdead

	loaded, _, err := store.GetRun(ctx, "r")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if loaded.Trace[0] != 0x1000 {
		t.Fatalf("stored trace aliased caller slice: %x", loaded.Trace[0])
	}
	loaded.BestByGeneration[0] = 99
	again, _, _ := store.GetRun(ctx, "r")
	if again.BestByGeneration[0] != 5 {
		t.Fatal("returned history aliased stored slice")
	}
}
