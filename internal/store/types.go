package store

import "time"

// #region run-record
// RunRecord is one scan session: a model, an engine config, and a sequence
// of scored texts.
type RunRecord struct {
	RunID        string
	ModelID      string
	ConfigJSON   string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while the run is still open
	TextsSeen    int
	AlertsRaised int
}
// #endregion run-record

// #region evaluation-record
// EvaluationRecord is a single scored text within a run.
type EvaluationRecord struct {
	EvalID      string
	RunID       string
	Step        int
	Text        string
	Novelty     float64
	KL          float64
	Fisher      float64
	TokenCount  int
	Alert       bool
	EvaluatedAt time.Time
}
// #endregion evaluation-record
