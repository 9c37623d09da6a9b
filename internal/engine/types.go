package engine

import (
	"fmt"
	"math"
	"time"
)

// #region config

// Config holds the scoring parameters of the novelty functional.
type Config struct {
	AttentionNormalizer float64  // token-count normalizer in the length penalty
	Epsilon             float64  // numerical stability constant in the denominator
	TargetLayers        []string // parameter-name substrings scored by the sensitivity pass
	NoveltyThreshold    float64  // alert when novelty strictly exceeds this
}

// DefaultConfig returns the reference scoring parameters.
func DefaultConfig() Config {
	return Config{
		AttentionNormalizer: 512.0,
		Epsilon:             1e-6,
		TargetLayers:        []string{"lm_head"},
		NoveltyThreshold:    0.5,
	}
}

// Validate checks that the scoring parameters are usable. An empty
// TargetLayers list is allowed: it selects no parameters and every text
// scores zero.
func (c Config) Validate() error {
	if !(c.AttentionNormalizer > 0) {
		return fmt.Errorf("attention normalizer must be positive, got %g", c.AttentionNormalizer)
	}
	if !(c.Epsilon > 0) {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	if math.IsNaN(c.NoveltyThreshold) || math.IsInf(c.NoveltyThreshold, 0) {
		return fmt.Errorf("novelty threshold must be finite, got %g", c.NoveltyThreshold)
	}
	return nil
}

// #endregion config

// #region result

// Result is the outcome of scoring one text.
type Result struct {
	ID          string
	Text        string
	Novelty     float64
	KL          float64
	Fisher      float64
	TokenCount  int // tokens the model actually saw, after truncation
	Alert       bool
	EvaluatedAt time.Time
}

// #endregion result
