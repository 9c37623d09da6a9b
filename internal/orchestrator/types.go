package orchestrator

import (
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/meter"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/report"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/store"
)

// #region deps

// Deps wires an Orchestrator. Engine is required; everything else is an
// optional collaborator the run streams into.
type Deps struct {
	Engine  *engine.Engine
	Sink    report.Sink  // per-text result stream, may be nil
	Store   *store.Store // run persistence + alert provenance, may be nil
	Meter   *meter.Meter // energy baseline sampling, may be nil
	ModelID string       // recorded with persisted runs

	// ConfigJSON is persisted as the run's config_json. When empty, the
	// engine config alone is marshaled; scans pass the full replayable
	// model+engine payload instead.
	ConfigJSON string
}

// #endregion deps

// #region summary

// Summary aggregates a run's scores.
type Summary struct {
	Texts       int
	Alerts      int
	MeanNovelty float64
	MaxNovelty  float64
	P95Novelty  float64
	MeanKL      float64
	MeanFisher  float64
	TotalTokens int
}

// #endregion summary

// #region run-report

// RunReport is the complete outcome of one streaming run. On an aborted run
// it carries everything collected before the failing text.
type RunReport struct {
	RunID   string // empty when no store was wired
	Results []engine.Result
	Samples []meter.Sample
	Summary Summary
	Energy  meter.Summary
}

// #endregion run-report
