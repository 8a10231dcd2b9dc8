package trace

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kdowney/storewise/internal/agent"
	"github.com/kdowney/storewise/internal/corpus"
	"github.com/kdowney/storewise/internal/engine"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/retrieval"
	"github.com/kdowney/storewise/internal/router"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleState() *agent.State {
	return &agent.State{
		RunID:      "run-1",
		Query:      "Total sales during Summer 1997",
		FormatHint: "currency",
		CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Routing: &router.Decision{
			Intent:    router.IntentHybrid,
			Rationale: "needs calendar and revenue",
			Source:    router.SourceModel,
		},
		Chunks: []retrieval.ScoredChunk{
			{Chunk: corpus.Chunk{ID: "marketing_calendar.md::chunk0"}, Score: 4.2},
		},
		Constraints: []planner.Constraint{
			{Name: "date_range", Value: "1997-06-01..1997-08-31", Derivation: "calendar"},
		},
		Attempts: []agent.SQLAttempt{
			{Number: 0, Query: "SELECT ShipDate FROM Orders", Status: agent.AttemptFailed, Error: "no such column: ShipDate"},
			{Number: 1, Query: "SELECT OrderDate FROM Orders", Status: agent.AttemptSuccess,
				Result: &engine.Result{Columns: []string{"OrderDate"}, Rows: [][]string{{"1997-06-15"}, {"1997-07-02"}}}},
		},
		Answer: &agent.FinalAnswer{
			Text:       "Total sales were 105.",
			Confidence: agent.ConfidenceFull,
			Citations: []agent.Citation{
				{Claim: "date window", Source: "marketing_calendar.md::chunk0"},
				{Claim: "total 105", Source: "sql-attempt-1"},
			},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	store := openTestStore(t)

	if err := store.Record(sampleState()); err != nil {
		t.Fatalf("record: %v", err)
	}

	rec, err := store.GetRun("run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if rec.Intent != "hybrid" || rec.RouteSource != "model" {
		t.Errorf("routing = %s/%s", rec.Intent, rec.RouteSource)
	}
	if len(rec.ChunkIDs) != 1 || rec.ChunkIDs[0] != "marketing_calendar.md::chunk0" {
		t.Errorf("chunk ids = %v", rec.ChunkIDs)
	}
	if len(rec.Constraints) != 1 || rec.Constraints[0].Value != "1997-06-01..1997-08-31" {
		t.Errorf("constraints = %+v", rec.Constraints)
	}
	if len(rec.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(rec.Attempts))
	}
	if rec.Attempts[0].Status != "failed" || rec.Attempts[0].Error == "" {
		t.Errorf("attempt 0 = %+v", rec.Attempts[0])
	}
	if rec.Attempts[1].RowCount != 2 {
		t.Errorf("attempt 1 row count = %d, want 2", rec.Attempts[1].RowCount)
	}
	if rec.Confidence != "full" || len(rec.Citations) != 2 {
		t.Errorf("answer = %s with %d citations", rec.Confidence, len(rec.Citations))
	}
}

func TestListRuns_MostRecentFirst(t *testing.T) {
	store := openTestStore(t)

	first := sampleState()
	second := sampleState()
	second.RunID = "run-2"
	second.CreatedAt = first.CreatedAt.Add(time.Minute)

	if err := store.Record(first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := store.Record(second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRecord_RejectsUnroutedState(t *testing.T) {
	store := openTestStore(t)

	st := sampleState()
	st.Routing = nil
	if err := store.Record(st); err == nil {
		t.Fatal("expected error for state without a routing decision")
	}
}
