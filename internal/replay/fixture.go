package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/store"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tinylm"
)

// #region fixture-types

// Fixture is the JSON structure for a recorded scan: enough to rebuild the
// exact model and engine, plus the scores they are expected to reproduce.
type Fixture struct {
	Name     string           `json:"name"`
	Model    ModelSpec        `json:"model"`
	Engine   EngineSpec       `json:"engine"`
	Texts    []string         `json:"texts"`
	Expected []ExpectedResult `json:"expected_results"`
}

// ModelSpec mirrors tinylm.Config with JSON tags.
type ModelSpec struct {
	ID          string `json:"id"`
	Seed        int64  `json:"seed"`
	VocabSize   int    `json:"vocab_size"`
	ContextSize int    `json:"context_size"`
	EmbedDim    int    `json:"embed_dim"`
	HiddenDim   int    `json:"hidden_dim"`
	NumBlocks   int    `json:"num_blocks"`
}

// EngineSpec mirrors engine.Config with JSON tags.
type EngineSpec struct {
	AttentionNormalizer float64  `json:"attention_normalizer"`
	Epsilon             float64  `json:"epsilon"`
	TargetLayers        []string `json:"target_layers"`
	NoveltyThreshold    float64  `json:"novelty_threshold"`
}

// RunConfig is the config_json payload persisted with each run, so a stored
// run can be replayed without the original YAML file.
type RunConfig struct {
	Model  ModelSpec  `json:"model"`
	Engine EngineSpec `json:"engine"`
}

// ExpectedResult is one recorded score.
type ExpectedResult struct {
	Novelty float64 `json:"novelty"`
	KL      float64 `json:"kl"`
	Fisher  float64 `json:"fisher"`
	Tokens  int     `json:"tokens"`
	IsAlert bool    `json:"is_alert"`
}

// #endregion fixture-types

// #region converters

// ToModelConfig converts a ModelSpec to the reference backend's config.
func (s ModelSpec) ToModelConfig() tinylm.Config {
	return tinylm.Config{
		ID:          s.ID,
		Seed:        s.Seed,
		VocabSize:   s.VocabSize,
		ContextSize: s.ContextSize,
		EmbedDim:    s.EmbedDim,
		HiddenDim:   s.HiddenDim,
		NumBlocks:   s.NumBlocks,
	}
}

// FromModelConfig captures a tinylm config as a fixture spec.
func FromModelConfig(c tinylm.Config) ModelSpec {
	return ModelSpec{
		ID:          c.ID,
		Seed:        c.Seed,
		VocabSize:   c.VocabSize,
		ContextSize: c.ContextSize,
		EmbedDim:    c.EmbedDim,
		HiddenDim:   c.HiddenDim,
		NumBlocks:   c.NumBlocks,
	}
}

// ToEngineConfig converts an EngineSpec to the scoring config.
func (s EngineSpec) ToEngineConfig() engine.Config {
	return engine.Config{
		AttentionNormalizer: s.AttentionNormalizer,
		Epsilon:             s.Epsilon,
		TargetLayers:        s.TargetLayers,
		NoveltyThreshold:    s.NoveltyThreshold,
	}
}

// FromEngineConfig captures a scoring config as a fixture spec.
func FromEngineConfig(c engine.Config) EngineSpec {
	return EngineSpec{
		AttentionNormalizer: c.AttentionNormalizer,
		Epsilon:             c.Epsilon,
		TargetLayers:        c.TargetLayers,
		NoveltyThreshold:    c.NoveltyThreshold,
	}
}

// #endregion converters

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Texts) == 0 {
		return nil, fmt.Errorf("fixture %s has no texts", path)
	}
	if len(f.Expected) != 0 && len(f.Expected) != len(f.Texts) {
		return nil, fmt.Errorf("fixture %s: %d texts but %d expected results",
			path, len(f.Texts), len(f.Expected))
	}
	return &f, nil
}

// WriteFixture marshals a fixture to path with indentation.
func WriteFixture(f Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-io

// #region from-run

// FromRun snapshots a stored run as a fixture. The run's config_json must be
// in RunConfig format (scans write it; hand-edited rows may not parse).
func FromRun(run store.RunRecord, evals []store.EvaluationRecord) (Fixture, error) {
	var rc RunConfig
	if err := json.Unmarshal([]byte(run.ConfigJSON), &rc); err != nil {
		return Fixture{}, fmt.Errorf("parse run config for %s: %w", run.RunID, err)
	}
	if rc.Model.VocabSize == 0 {
		return Fixture{}, fmt.Errorf("run %s config_json lacks a model section", run.RunID)
	}
	if len(evals) == 0 {
		return Fixture{}, fmt.Errorf("run %s has no evaluations", run.RunID)
	}

	f := Fixture{
		Name:   fmt.Sprintf("run %s export (%d texts)", run.RunID, len(evals)),
		Model:  rc.Model,
		Engine: rc.Engine,
	}
	for _, e := range evals {
		f.Texts = append(f.Texts, e.Text)
		f.Expected = append(f.Expected, ExpectedResult{
			Novelty: e.Novelty,
			KL:      e.KL,
			Fisher:  e.Fisher,
			Tokens:  e.TokenCount,
			IsAlert: e.Alert,
		})
	}
	return f, nil
}

// #endregion from-run
