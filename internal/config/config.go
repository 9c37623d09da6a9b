package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/meter"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tinylm"
)

// #region file-config

// File is the YAML configuration surface for the scan binaries. Every field
// has a default; a config file overlays only what it names.
type File struct {
	Model  ModelSection  `yaml:"model"`
	Engine EngineSection `yaml:"engine"`
	Run    RunSection    `yaml:"run"`
	Meter  MeterSection  `yaml:"meter"`
}

// ModelSection shapes the in-process reference model.
type ModelSection struct {
	ID          string `yaml:"id"`
	Seed        int64  `yaml:"seed"`
	ContextSize int    `yaml:"context_size"`
	EmbedDim    int    `yaml:"embed_dim"`
	HiddenDim   int    `yaml:"hidden_dim"`
	NumBlocks   int    `yaml:"num_blocks"`
}

// EngineSection holds the novelty functional's tunables.
type EngineSection struct {
	AttentionNormalizer float64  `yaml:"attention_normalizer"`
	Epsilon             float64  `yaml:"epsilon"`
	TargetLayers        []string `yaml:"target_layers"`
	NoveltyThreshold    float64  `yaml:"novelty_threshold"`
}

// RunSection holds scan-level settings.
type RunSection struct {
	DBPath  string `yaml:"db_path"`
	CSVPath string `yaml:"csv_path"`
	Workers int    `yaml:"workers"`
}

// MeterSection holds the energy-model constants.
type MeterSection struct {
	TDPWatts       float64 `yaml:"tdp_watts"`
	FPGANominalMW  float64 `yaml:"fpga_nominal_mw"`
	LinkBitsPerSec float64 `yaml:"link_bits_per_sec"`
}

// #endregion file-config

// #region defaults

// Default returns the File mirroring every package's default config.
func Default() File {
	mc := tinylm.DefaultConfig()
	ec := engine.DefaultConfig()
	tc := meter.DefaultConfig()
	return File{
		Model: ModelSection{
			ID:          mc.ID,
			Seed:        mc.Seed,
			ContextSize: mc.ContextSize,
			EmbedDim:    mc.EmbedDim,
			HiddenDim:   mc.HiddenDim,
			NumBlocks:   mc.NumBlocks,
		},
		Engine: EngineSection{
			AttentionNormalizer: ec.AttentionNormalizer,
			Epsilon:             ec.Epsilon,
			TargetLayers:        ec.TargetLayers,
			NoveltyThreshold:    ec.NoveltyThreshold,
		},
		Run: RunSection{Workers: 1},
		Meter: MeterSection{
			TDPWatts:       tc.TDPWatts,
			FPGANominalMW:  tc.FPGANominalMW,
			LinkBitsPerSec: tc.LinkBitsPerSec,
		},
	}
}

// #endregion defaults

// #region load

// Load reads a YAML file and overlays it onto the defaults. An empty path
// returns the defaults untouched.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the file-level settings and defers engine and model checks
// to their own Validate methods.
func (f File) Validate() error {
	if err := f.ModelConfig().Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := f.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if f.Run.Workers < 1 {
		return fmt.Errorf("run: workers must be at least 1, got %d", f.Run.Workers)
	}
	if f.Meter.TDPWatts <= 0 {
		return fmt.Errorf("meter: tdp_watts must be positive, got %g", f.Meter.TDPWatts)
	}
	if f.Meter.LinkBitsPerSec <= 0 {
		return fmt.Errorf("meter: link_bits_per_sec must be positive, got %g", f.Meter.LinkBitsPerSec)
	}
	return nil
}

// #endregion load

// #region converters

// ModelConfig maps the model section to the reference backend's config.
// VocabSize stays at the byte-level default; it is a property of the
// tokenizer, not a tunable.
func (f File) ModelConfig() tinylm.Config {
	c := tinylm.DefaultConfig()
	c.ID = f.Model.ID
	c.Seed = f.Model.Seed
	c.ContextSize = f.Model.ContextSize
	c.EmbedDim = f.Model.EmbedDim
	c.HiddenDim = f.Model.HiddenDim
	c.NumBlocks = f.Model.NumBlocks
	return c
}

// EngineConfig maps the engine section to the scoring config.
func (f File) EngineConfig() engine.Config {
	return engine.Config{
		AttentionNormalizer: f.Engine.AttentionNormalizer,
		Epsilon:             f.Engine.Epsilon,
		TargetLayers:        f.Engine.TargetLayers,
		NoveltyThreshold:    f.Engine.NoveltyThreshold,
	}
}

// MeterConfig maps the meter section to the energy model's config.
func (f File) MeterConfig() meter.Config {
	return meter.Config{
		TDPWatts:       f.Meter.TDPWatts,
		FPGANominalMW:  f.Meter.FPGANominalMW,
		LinkBitsPerSec: f.Meter.LinkBitsPerSec,
	}
}

// #endregion converters
