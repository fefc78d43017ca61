package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gantry-dev/gantry/pkg/engine"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "gantry.db")})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return store
}

func samplePlan() *engine.InstallPlan {
	return &engine.InstallPlan{
		Library:    "distrain",
		BuildFlags: []string{"WITH_MPI", "WITH_TENSORFLOW"},
		Steps: []engine.InstallStep{
			{Ordinal: 0, ID: "system-toolchain", Kind: engine.StepInstallSystemPackage, Name: "system toolchain"},
			{Ordinal: 1, ID: "python-runtime", Kind: engine.StepInstallLanguageRuntime, Name: "python 3.8",
				Parameters: map[string]string{"version": "3.8"}, DependsOn: []string{"system-toolchain"}},
		},
	}
}

func TestSQLiteStorePlanRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.SavePlan(ctx, samplePlan())
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || rec.Digest == "" {
		t.Fatalf("record missing identity: %+v", rec)
	}

	got, err := store.GetPlan(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Library != "distrain" {
		t.Errorf("library = %q", got.Library)
	}
	if len(got.Plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(got.Plan.Steps))
	}
	if got.Plan.Steps[1].Parameters["version"] != "3.8" {
		t.Error("step parameters lost in round trip")
	}
	if got.Digest != rec.Digest {
		t.Error("digest changed in round trip")
	}
}

func TestSQLiteStoreIdenticalPlansShareDigest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.SavePlan(ctx, samplePlan())
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.SavePlan(ctx, samplePlan())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("distinct saves share an ID")
	}
	if a.Digest != b.Digest {
		t.Error("identical plans produced different digests")
	}
}

func TestSQLiteStoreGetPlanNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetPlan(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.SavePlan(ctx, samplePlan())
	if err != nil {
		t.Fatal(err)
	}

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &engine.Run{
		ID:         "run-1",
		PlanID:     rec.ID,
		Library:    "distrain",
		Status:     engine.RunStatusFailed,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Results: []engine.StepResult{
			{StepID: "system-toolchain", Ordinal: 0, Status: engine.RunStatusSucceeded,
				StartedAt: started, FinishedAt: started.Add(30 * time.Second)},
			{StepID: "python-runtime", Ordinal: 1, Status: engine.RunStatusFailed,
				Error:     "interpreter install failed",
				StartedAt: started.Add(30 * time.Second), FinishedAt: started.Add(90 * time.Second)},
		},
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != engine.RunStatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if got.PlanID != rec.ID {
		t.Errorf("plan_id = %q, want %q", got.PlanID, rec.ID)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(got.Results))
	}
	if got.Results[1].Error != "interpreter install failed" {
		t.Errorf("step error = %q", got.Results[1].Error)
	}

	// Re-saving the same run updates status instead of duplicating.
	run.Status = engine.RunStatusSucceeded
	run.Results[1].Status = engine.RunStatusSucceeded
	run.Results[1].Error = ""
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != engine.RunStatusSucceeded {
		t.Error("re-save did not update run status")
	}
}

func TestSQLiteStoreListRunsByPlan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.SavePlan(ctx, samplePlan())
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		run := &engine.Run{
			ID: id, PlanID: rec.ID, Library: "distrain",
			Status:     engine.RunStatusSucceeded,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, rec.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != "run-b" {
		t.Errorf("newest run first, got %s", runs[0].ID)
	}
}
