package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvaluation(runID string, step int, novelty float64, alert bool) EvaluationRecord {
	return EvaluationRecord{
		EvalID:      "eval-" + runID + "-" + time.Now().Format("150405.000000000"),
		RunID:       runID,
		Step:        step,
		Text:        "the quick brown fox",
		Novelty:     novelty,
		KL:          1.25,
		Fisher:      0.75,
		TokenCount:  19,
		Alert:       alert,
		EvaluatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBeginRunAndGetRun(t *testing.T) {
	s := tempDB(t)

	rec, err := s.BeginRun("tinylm-byte-v1", `{"novelty_threshold":0.5}`)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if rec.RunID == "" {
		t.Fatal("expected non-empty run ID")
	}
	if !rec.FinishedAt.IsZero() {
		t.Fatalf("expected open run, finished at %v", rec.FinishedAt)
	}

	got, err := s.GetRun(rec.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.ModelID != "tinylm-byte-v1" {
		t.Fatalf("expected model tinylm-byte-v1, got %s", got.ModelID)
	}
	if got.ConfigJSON != `{"novelty_threshold":0.5}` {
		t.Fatalf("config JSON mismatch: %q", got.ConfigJSON)
	}
	if !got.FinishedAt.IsZero() {
		t.Fatal("expected zero FinishedAt for an open run")
	}
}

func TestFinishRun(t *testing.T) {
	s := tempDB(t)

	rec, err := s.BeginRun("tinylm-byte-v1", "{}")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	if err := s.FinishRun(rec.RunID, 5, 2); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(rec.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("expected FinishedAt to be set")
	}
	if got.TextsSeen != 5 || got.AlertsRaised != 2 {
		t.Fatalf("expected counters 5/2, got %d/%d", got.TextsSeen, got.AlertsRaised)
	}
}

func TestFinishRunNonExistent(t *testing.T) {
	s := tempDB(t)
	s.BeginRun("tinylm-byte-v1", "{}")

	err := s.FinishRun("nonexistent-id", 0, 0)
	if err == nil {
		t.Fatal("expected error for non-existent run")
	}
}

func TestInsertAndListEvaluations(t *testing.T) {
	s := tempDB(t)

	run, err := s.BeginRun("tinylm-byte-v1", "{}")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	first := sampleEvaluation(run.RunID, 0, 0.82, true)
	first.EvalID = "eval-1"
	second := sampleEvaluation(run.RunID, 1, 0.12, false)
	second.EvalID = "eval-2"

	// Insert out of step order, expect step order back
	if err := s.InsertEvaluation(second); err != nil {
		t.Fatalf("InsertEvaluation: %v", err)
	}
	if err := s.InsertEvaluation(first); err != nil {
		t.Fatalf("InsertEvaluation: %v", err)
	}

	evals, err := s.ListEvaluations(run.RunID)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(evals))
	}
	if evals[0].EvalID != "eval-1" || evals[1].EvalID != "eval-2" {
		t.Fatalf("expected step order eval-1, eval-2; got %s, %s", evals[0].EvalID, evals[1].EvalID)
	}
	if !evals[0].Alert || evals[1].Alert {
		t.Fatal("alert flags did not round-trip")
	}
}

func TestEvaluationScoresRoundTripExactly(t *testing.T) {
	s := tempDB(t)

	run, _ := s.BeginRun("tinylm-byte-v1", "{}")
	rec := sampleEvaluation(run.RunID, 0, 0.1+0.2, false) // deliberately not a round float
	rec.EvalID = "eval-exact"
	rec.KL = 5.545177444479562
	rec.Fisher = 3.0000000000000004e-9

	if err := s.InsertEvaluation(rec); err != nil {
		t.Fatalf("InsertEvaluation: %v", err)
	}

	evals, err := s.ListEvaluations(run.RunID)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	got := evals[0]
	if got.Novelty != rec.Novelty || got.KL != rec.KL || got.Fisher != rec.Fisher {
		t.Fatalf("scores did not round-trip bit-exactly: got %v/%v/%v, want %v/%v/%v",
			got.Novelty, got.KL, got.Fisher, rec.Novelty, rec.KL, rec.Fisher)
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)

	if _, err := s.BeginRun("model-a", "{}"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if _, err := s.BeginRun("model-b", "{}"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestCountAlerts(t *testing.T) {
	s := tempDB(t)

	run, _ := s.BeginRun("tinylm-byte-v1", "{}")
	for i := 0; i < 4; i++ {
		rec := sampleEvaluation(run.RunID, i, float64(i), i%2 == 0)
		rec.EvalID = rec.EvalID + "-" + string(rune('a'+i))
		if err := s.InsertEvaluation(rec); err != nil {
			t.Fatalf("InsertEvaluation: %v", err)
		}
	}

	n, err := s.CountAlerts(run.RunID)
	if err != nil {
		t.Fatalf("CountAlerts: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 alerts, got %d", n)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := tempDB(t)
	s.BeginRun("tinylm-byte-v1", "{}")

	_, err := s.GetRun("nonexistent-id")
	if err == nil {
		t.Fatal("expected error for nonexistent run")
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestDBAccessor(t *testing.T) {
	s := tempDB(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestBeginRunOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()

	_, err := s.BeginRun("tinylm-byte-v1", "{}")
	if err == nil {
		t.Fatal("expected error on closed DB")
	}
}

func TestInsertEvaluationOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	run, _ := s.BeginRun("tinylm-byte-v1", "{}")
	s.Close()

	err := s.InsertEvaluation(sampleEvaluation(run.RunID, 0, 0.5, false))
	if err == nil {
		t.Fatal("expected error on closed DB")
	}
}

func TestListEvaluationsOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	run, _ := s.BeginRun("tinylm-byte-v1", "{}")
	s.Close()

	_, err := s.ListEvaluations(run.RunID)
	if err == nil {
		t.Fatal("expected error on closed DB")
	}
}

func TestFinishRunOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	run, _ := s.BeginRun("tinylm-byte-v1", "{}")
	s.Close()

	err := s.FinishRun(run.RunID, 1, 0)
	if err == nil {
		t.Fatal("expected error on closed DB")
	}
}

// corruptDB opens an in-memory SQLite with full schema via NewStoreWithDB.
// Returns the Store and raw *sql.DB so tests can drop tables / insert bad data.
func corruptDB(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	s := NewStoreWithDB(db)
	t.Cleanup(func() { db.Close() })
	return s, db
}

func TestBeginRun_InsertFails(t *testing.T) {
	s, db := corruptDB(t)
	db.Exec("DROP TABLE runs")

	_, err := s.BeginRun("tinylm-byte-v1", "{}")
	if err == nil {
		t.Fatal("expected error when runs table is missing")
	}
}

func TestInsertEvaluation_InsertFails(t *testing.T) {
	s, db := corruptDB(t)
	run, err := s.BeginRun("tinylm-byte-v1", "{}")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	db.Exec("DROP TABLE evaluations")

	if err := s.InsertEvaluation(sampleEvaluation(run.RunID, 0, 0.5, false)); err == nil {
		t.Fatal("expected error when evaluations table is missing")
	}
}

func TestNewStore_CorruptDB(t *testing.T) {
	// Corrupted DB file: sql.Open succeeds but the first PRAGMA fails.
	dir, err := os.MkdirTemp("", "store-corrupt-test-*")
	if err != nil {
		t.Fatalf("mkdirtemp: %v", err)
	}
	dbPath := filepath.Join(dir, "corrupt.db")
	os.WriteFile(dbPath, []byte("not a sqlite database"), 0644)

	_, err = NewStore(dbPath)
	if err == nil {
		t.Fatal("expected error for corrupted DB file")
	}
	// Best-effort cleanup; may fail on Windows due to leaked DB handle
	os.RemoveAll(dir)
}
