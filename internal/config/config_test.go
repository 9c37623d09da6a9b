package config

import (
	"os"
	"path/filepath"
	"testing"
)

// #region helpers
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// #endregion helpers

// #region load-tests
func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.AttentionNormalizer != 512.0 {
		t.Errorf("expected default normalizer 512, got %g", cfg.Engine.AttentionNormalizer)
	}
	if cfg.Engine.NoveltyThreshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %g", cfg.Engine.NoveltyThreshold)
	}
	if len(cfg.Engine.TargetLayers) != 1 || cfg.Engine.TargetLayers[0] != "lm_head" {
		t.Errorf("expected default target layers [lm_head], got %v", cfg.Engine.TargetLayers)
	}
	if cfg.Model.Seed != 42 {
		t.Errorf("expected default seed 42, got %d", cfg.Model.Seed)
	}
	if cfg.Meter.TDPWatts != 25.0 {
		t.Errorf("expected default TDP 25, got %g", cfg.Meter.TDPWatts)
	}
}

func TestLoad_OverlaysOnlyNamedFields(t *testing.T) {
	path := writeConfig(t, `
engine:
  novelty_threshold: 0.8
  target_layers: [lm_head, wte]
run:
  workers: 4
  db_path: scans.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.NoveltyThreshold != 0.8 {
		t.Errorf("expected overlaid threshold 0.8, got %g", cfg.Engine.NoveltyThreshold)
	}
	if len(cfg.Engine.TargetLayers) != 2 {
		t.Errorf("expected 2 target layers, got %v", cfg.Engine.TargetLayers)
	}
	if cfg.Engine.AttentionNormalizer != 512.0 {
		t.Errorf("unnamed field lost its default: %g", cfg.Engine.AttentionNormalizer)
	}
	if cfg.Run.Workers != 4 || cfg.Run.DBPath != "scans.db" {
		t.Errorf("unexpected run section %+v", cfg.Run)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative epsilon", "engine:\n  epsilon: -1.0\n"},
		{"zero workers", "run:\n  workers: 0\n"},
		{"zero tdp", "meter:\n  tdp_watts: 0\n"},
		{"tiny context", "model:\n  context_size: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// #endregion load-tests

// #region converter-tests
func TestConverters_RoundTripDefaults(t *testing.T) {
	cfg := Default()

	mc := cfg.ModelConfig()
	if err := mc.Validate(); err != nil {
		t.Fatalf("model config invalid: %v", err)
	}
	if mc.VocabSize != 256 {
		t.Errorf("vocab size is not a tunable, expected 256, got %d", mc.VocabSize)
	}

	ec := cfg.EngineConfig()
	if err := ec.Validate(); err != nil {
		t.Fatalf("engine config invalid: %v", err)
	}

	tc := cfg.MeterConfig()
	if tc.FPGANominalMW != 450.0 {
		t.Errorf("expected 450 mW nominal, got %g", tc.FPGANominalMW)
	}
}

// #endregion converter-tests
