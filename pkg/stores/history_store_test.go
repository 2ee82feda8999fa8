package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoistlab/hoist/pkg/orchestrator"
)

func newHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return store
}

func sampleRecord(id, env string, verb orchestrator.Verb, outcome orchestrator.Outcome, at time.Time) orchestrator.CommandRecord {
	return orchestrator.CommandRecord{
		ID:          id,
		Environment: env,
		Verb:        verb,
		Outcome:     outcome,
		StartedAt:   at,
		FinishedAt:  at.Add(30 * time.Second),
		Steps: []orchestrator.StepRecord{
			{
				Step:       "render-infrastructure",
				Outcome:    orchestrator.OutcomeSuccess,
				StartedAt:  at,
				FinishedAt: at.Add(time.Second),
			},
			{
				Step:    "apply-infrastructure",
				Outcome: orchestrator.OutcomeSkipped,
			},
		},
	}
}

func TestHistoryStoreAppendAndRecent(t *testing.T) {
	store := newHistoryStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	records := []orchestrator.CommandRecord{
		sampleRecord("id-1", "staging", orchestrator.VerbCreate, orchestrator.OutcomeSuccess, base),
		sampleRecord("id-2", "staging", orchestrator.VerbProvision, orchestrator.OutcomeFailure, base.Add(time.Minute)),
		sampleRecord("id-3", "prod", orchestrator.VerbCreate, orchestrator.OutcomeSuccess, base.Add(2*time.Minute)),
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append %s: %v", rec.ID, err)
		}
	}

	got, err := store.Recent(ctx, "staging", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].ID != "id-2" || got[1].ID != "id-1" {
		t.Errorf("order = %s, %s (want newest first)", got[0].ID, got[1].ID)
	}
	if got[0].Verb != orchestrator.VerbProvision || got[0].Outcome != orchestrator.OutcomeFailure {
		t.Errorf("record detail = %+v", got[0])
	}
	if !got[0].StartedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("started at = %v", got[0].StartedAt)
	}

	if len(got[0].Steps) != 2 {
		t.Fatalf("steps = %d", len(got[0].Steps))
	}
	first, second := got[0].Steps[0], got[0].Steps[1]
	if first.Step != "render-infrastructure" || first.Outcome != orchestrator.OutcomeSuccess {
		t.Errorf("first step = %+v", first)
	}
	if second.Outcome != orchestrator.OutcomeSkipped || !second.StartedAt.IsZero() {
		t.Errorf("skipped step should keep zero timestamps: %+v", second)
	}
}

func TestHistoryStoreRecentAcrossEnvironments(t *testing.T) {
	store := newHistoryStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, env := range []string{"a", "b", "c"} {
		rec := sampleRecord("id-"+env, env, orchestrator.VerbCreate, orchestrator.OutcomeSuccess, base.Add(time.Duration(i)*time.Minute))
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("records = %d, want limit 2", len(all))
	}
	if all[0].Environment != "c" {
		t.Errorf("newest = %s", all[0].Environment)
	}
}

func TestHistoryStoreRequiresInit(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Append(context.Background(), orchestrator.CommandRecord{ID: "x"}); err == nil {
		t.Fatal("append before Init must fail")
	}
	if _, err := store.Recent(context.Background(), "", 5); err == nil {
		t.Fatal("recent before Init must fail")
	}
}
