package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// #region kl-divergence

// klFromUniform measures how far the model's final-position next-token
// distribution sits from uniform over the vocabulary:
//
//	sum_i p_i * (log p_i - log(1/V))
//
// taken as the batch mean over a batch of one. This equals log(V) - H(p),
// so the value is non-negative and bounded by log(V); a model emitting
// exactly uniform logits scores exactly zero.
func (e *Engine) klFromUniform(ids []int) (float64, error) {
	logits, err := e.model.Logits(ids)
	if err != nil {
		return 0, fmt.Errorf("forward pass: %w", err)
	}
	if len(logits) == 0 {
		return 0, fmt.Errorf("forward pass returned empty logits")
	}

	logp := logSoftmax(logits)
	logUniform := -math.Log(float64(len(logits)))

	var kl float64
	for _, lp := range logp {
		kl += math.Exp(lp) * (lp - logUniform)
	}
	// Rounding in the log-sum-exp can leave a tiny negative residue when the
	// distribution sits at uniform; clamp so kl >= 0 holds exactly.
	return math.Max(kl, 0), nil
}

// logSoftmax converts logits to log-probabilities via the stable
// log-sum-exp reduction.
func logSoftmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	out := make([]float64, len(logits))
	for i, l := range logits {
		out[i] = l - lse
	}
	return out
}

// #endregion kl-divergence
