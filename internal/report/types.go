package report

import (
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region sink-interface

// Sink consumes scored texts as they are produced. Emit is called once per
// text in evaluation order; Close flushes anything buffered. The orchestrator
// makes no assumption about where the stream goes.
type Sink interface {
	Emit(step int, res engine.Result) error
	Close() error
}

// #endregion sink-interface
