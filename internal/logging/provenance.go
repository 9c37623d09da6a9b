package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region log-alert
// LogAlert writes an alert provenance row to the alert_log table. A zero
// AlertID or CreatedAt is filled in; Margin is derived when left at zero.
func LogAlert(db *sql.DB, entry AlertEntry) (AlertEntry, error) {
	if entry.AlertID == "" {
		entry.AlertID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Margin == 0 {
		entry.Margin = entry.Novelty - entry.Threshold
	}

	_, err := db.Exec(
		`INSERT INTO alert_log (alert_id, run_id, eval_id, novelty, threshold, margin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.AlertID,
		entry.RunID,
		entry.EvalID,
		entry.Novelty,
		entry.Threshold,
		entry.Margin,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return AlertEntry{}, fmt.Errorf("log alert: %w", err)
	}
	return entry, nil
}
// #endregion log-alert

// #region list-alerts
// ListAlerts returns a run's alert provenance rows in insertion order.
func ListAlerts(db *sql.DB, runID string) ([]AlertEntry, error) {
	rows, err := db.Query(
		`SELECT alert_id, run_id, eval_id, novelty, threshold, margin, created_at
		 FROM alert_log WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var entries []AlertEntry
	for rows.Next() {
		var e AlertEntry
		var createdStr string
		if err := rows.Scan(&e.AlertID, &e.RunID, &e.EvalID, &e.Novelty,
			&e.Threshold, &e.Margin, &createdStr); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion list-alerts
