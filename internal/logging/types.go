package logging

import "time"

// #region alert-entry
// AlertEntry is a single row in the alert_log table: the audit record for one
// threshold crossing, keyed to the run and evaluation that produced it.
type AlertEntry struct {
	AlertID   string
	RunID     string
	EvalID    string
	Novelty   float64
	Threshold float64
	Margin    float64 // novelty - threshold, always positive for a logged alert
	CreatedAt time.Time
}
// #endregion alert-entry
