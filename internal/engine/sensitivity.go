package engine

import (
	"fmt"
	"strings"
)

// #region fisher-trace

// fisherTrace runs the sensitivity pass: causal LM loss with the inputs as
// their own labels, one backward pass, then the sum of squared gradients over
// parameters whose names contain any configured target substring. Gradient
// buffers are cleared before the backward pass and again after reading, so no
// gradient state survives into the next evaluation.
func (e *Engine) fisherTrace(ids []int) (float64, error) {
	e.model.ZeroGrad()
	if _, err := e.model.LossBackward(ids); err != nil {
		return 0, fmt.Errorf("backward pass: %w", err)
	}

	var trace float64
	for _, p := range e.model.Parameters() {
		if p.Grad == nil || !nameMatchesAny(p.Name, e.config.TargetLayers) {
			continue
		}
		for _, g := range p.Grad {
			trace += g * g
		}
	}
	e.model.ZeroGrad()
	return trace, nil
}

// nameMatchesAny reports whether name contains any of the target substrings.
func nameMatchesAny(name string, targets []string) bool {
	for _, t := range targets {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// #endregion fisher-trace
