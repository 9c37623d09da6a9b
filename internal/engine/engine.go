package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/model"
)

// #region engine

// Engine scores texts against a fixed causal language model. Weights are
// never modified; gradient buffers are the only model state the engine
// touches, and only inside Evaluate. A mutex serializes evaluations so a
// shared Engine is safe under concurrent callers; for parallel throughput
// run one Engine per model replica instead.
type Engine struct {
	config Config
	model  model.Model

	mu sync.Mutex
}

// New creates an Engine for the given model and scoring parameters.
func New(m model.Model, config Config) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("engine: nil model")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{config: config, model: m}, nil
}

// Config returns the scoring parameters the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// #endregion engine

// #region evaluate

// Evaluate scores a single text: tokenize, distribution analysis,
// sensitivity analysis, combination, classification. Model failures
// propagate wrapped; non-finite intermediate values surface as
// NumericalInstabilityError. There are no retries.
func (e *Engine) Evaluate(text string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids, err := e.model.Tokenize(text)
	if err != nil {
		return Result{}, fmt.Errorf("tokenize: %w", err)
	}
	if len(ids) == 0 {
		return Result{}, &InvalidInputError{Reason: "text tokenizes to zero tokens"}
	}

	kl, err := e.klFromUniform(ids)
	if err != nil {
		return Result{}, err
	}
	if !isFinite(kl) {
		return Result{}, &NumericalInstabilityError{Quantity: "kl_divergence", Value: kl}
	}

	fisher, err := e.fisherTrace(ids)
	if err != nil {
		return Result{}, err
	}
	if !isFinite(fisher) {
		return Result{}, &NumericalInstabilityError{Quantity: "fisher_trace", Value: fisher}
	}

	score := Novelty(kl, fisher, len(ids), e.config.AttentionNormalizer, e.config.Epsilon)
	if !isFinite(score) {
		return Result{}, &NumericalInstabilityError{Quantity: "novelty", Value: score}
	}

	return Result{
		ID:          uuid.New().String(),
		Text:        text,
		Novelty:     score,
		KL:          kl,
		Fisher:      fisher,
		TokenCount:  len(ids),
		Alert:       score > e.config.NoveltyThreshold,
		EvaluatedAt: time.Now().UTC(),
	}, nil
}

// isFinite reports whether v is neither NaN nor infinite.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion evaluate
