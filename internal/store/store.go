package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	model_id      TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	texts_seen    INTEGER NOT NULL DEFAULT 0,
	alerts_raised INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS evaluations (
	eval_id      TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	step         INTEGER NOT NULL,
	text         TEXT NOT NULL,
	novelty      REAL NOT NULL,
	kl           REAL NOT NULL,
	fisher       REAL NOT NULL,
	token_count  INTEGER NOT NULL,
	is_alert     INTEGER NOT NULL,
	evaluated_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS evaluations_by_run ON evaluations(run_id, step);

CREATE TABLE IF NOT EXISTS alert_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_id   TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	eval_id    TEXT NOT NULL,
	novelty    REAL NOT NULL,
	threshold  REAL NOT NULL,
	margin     REAL NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id),
	FOREIGN KEY (eval_id) REFERENCES evaluations(eval_id)
);
`
// #endregion schema

// #region store-struct
// Store persists runs and their evaluations in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-open handle. The caller keeps ownership of
// the handle and is responsible for the schema.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region begin-run
// BeginRun opens a new run row and returns it.
func (s *Store) BeginRun(modelID, configJSON string) (RunRecord, error) {
	rec := RunRecord{
		RunID:      uuid.New().String(),
		ModelID:    modelID,
		ConfigJSON: configJSON,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, model_id, config_json, started_at)
		 VALUES (?, ?, ?, ?)`,
		rec.RunID, rec.ModelID, rec.ConfigJSON, rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}
// #endregion begin-run

// #region finish-run
// FinishRun stamps the end time and final counters on a run.
func (s *Store) FinishRun(runID string, textsSeen, alertsRaised int) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("run %s not found", runID)
	}

	_, err = s.db.Exec(
		`UPDATE runs SET finished_at = ?, texts_seen = ?, alerts_raised = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), textsSeen, alertsRaised, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
// #endregion finish-run

// #region insert-evaluation
// InsertEvaluation appends one scored text to a run.
func (s *Store) InsertEvaluation(rec EvaluationRecord) error {
	alert := 0
	if rec.Alert {
		alert = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO evaluations (eval_id, run_id, step, text, novelty, kl, fisher, token_count, is_alert, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EvalID, rec.RunID, rec.Step, rec.Text, rec.Novelty, rec.KL, rec.Fisher,
		rec.TokenCount, alert, rec.EvaluatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}
// #endregion insert-evaluation

// #region get-run
// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var startedStr string
	var finishedStr sql.NullString

	err := s.db.QueryRow(
		`SELECT run_id, model_id, config_json, started_at, finished_at, texts_seen, alerts_raised
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.ModelID, &rec.ConfigJSON, &startedStr, &finishedStr,
		&rec.TextsSeen, &rec.AlertsRaised)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}

	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	return rec, nil
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, model_id, config_json, started_at, finished_at, texts_seen, alerts_raised
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedStr string
		var finishedStr sql.NullString

		if err := rows.Scan(&rec.RunID, &rec.ModelID, &rec.ConfigJSON, &startedStr, &finishedStr,
			&rec.TextsSeen, &rec.AlertsRaised); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if finishedStr.Valid {
			rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-runs

// #region list-evaluations
// ListEvaluations returns a run's evaluations in step order.
func (s *Store) ListEvaluations(runID string) ([]EvaluationRecord, error) {
	rows, err := s.db.Query(
		`SELECT eval_id, run_id, step, text, novelty, kl, fisher, token_count, is_alert, evaluated_at
		 FROM evaluations WHERE run_id = ? ORDER BY step ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var records []EvaluationRecord
	for rows.Next() {
		var rec EvaluationRecord
		var alert int
		var evaluatedStr string

		if err := rows.Scan(&rec.EvalID, &rec.RunID, &rec.Step, &rec.Text, &rec.Novelty,
			&rec.KL, &rec.Fisher, &rec.TokenCount, &alert, &evaluatedStr); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		rec.Alert = alert != 0
		rec.EvaluatedAt, _ = time.Parse(time.RFC3339Nano, evaluatedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-evaluations

// #region count-alerts
// CountAlerts counts the alert evaluations recorded for a run.
func (s *Store) CountAlerts(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM evaluations WHERE run_id = ? AND is_alert = 1`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}
// #endregion count-alerts
