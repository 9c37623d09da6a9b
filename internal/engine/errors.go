package engine

import "fmt"

// #region invalid-input

// InvalidInputError reports input the engine refuses to score.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// #endregion invalid-input

// #region numerical-instability

// NumericalInstabilityError reports a non-finite quantity produced during
// scoring. Quantity names the stage: kl_divergence, fisher_trace, or novelty.
type NumericalInstabilityError struct {
	Quantity string
	Value    float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("numerical instability: %s is %g", e.Quantity, e.Value)
}

// #endregion numerical-instability
