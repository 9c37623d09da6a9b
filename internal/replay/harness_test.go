package replay

import (
	"testing"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region helpers

// smallSpecs returns a compact model and default scoring parameters.
func smallSpecs() (ModelSpec, EngineSpec) {
	m := ModelSpec{
		ID:          "tinylm-test",
		Seed:        7,
		VocabSize:   256,
		ContextSize: 16,
		EmbedDim:    8,
		HiddenDim:   16,
		NumBlocks:   1,
	}
	return m, FromEngineConfig(engine.DefaultConfig())
}

func toExpected(results []engine.Result) []ExpectedResult {
	out := make([]ExpectedResult, len(results))
	for i, r := range results {
		out[i] = ExpectedResult{
			Novelty: r.Novelty,
			KL:      r.KL,
			Fisher:  r.Fisher,
			Tokens:  r.TokenCount,
			IsAlert: r.Alert,
		}
	}
	return out
}

// #endregion helpers

// #region replay-tests

func TestReplay_RebuiltEngineReproducesBitIdentical(t *testing.T) {
	mSpec, eSpec := smallSpecs()
	texts := []string{"first text", "second", "a slightly longer third text"}

	recorded, err := NewEngine(mSpec, eSpec)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	want, err := Replay(recorded, texts)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// A fresh engine from the same specs must reproduce every score exactly.
	rebuilt, err := NewEngine(mSpec, eSpec)
	if err != nil {
		t.Fatalf("NewEngine (rebuild): %v", err)
	}
	got, err := Replay(rebuilt, texts)
	if err != nil {
		t.Fatalf("replay pass: %v", err)
	}

	comparisons := Compare(got, toExpected(want), texts, 0)
	summary := Summarize(comparisons)
	if summary.Diverged != 0 {
		for _, c := range comparisons {
			if !c.Match {
				t.Errorf("text %d diverged: %s", c.Index, c.Reason)
			}
		}
	}
	if summary.Total != 3 || summary.Matches != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestReplay_StopsAtFailingText(t *testing.T) {
	mSpec, eSpec := smallSpecs()
	eng, err := NewEngine(mSpec, eSpec)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	results, err := Replay(eng, []string{"fine", "", "unreached"})
	if err == nil {
		t.Fatal("expected error for the empty text")
	}
	if len(results) != 1 {
		t.Errorf("expected results before the failure, got %d", len(results))
	}
}

// #endregion replay-tests

// #region compare-tests

func TestCompare_DetectsDivergence(t *testing.T) {
	got := []engine.Result{
		{Text: "a", Novelty: 0.5, KL: 1.0, Fisher: 0.1, TokenCount: 1, Alert: false},
		{Text: "b", Novelty: 0.7, KL: 2.0, Fisher: 0.2, TokenCount: 1, Alert: true},
	}
	want := toExpected(got)
	want[1].Novelty = 0.70001
	want[1].IsAlert = true

	exact := Compare(got, want, []string{"a", "b"}, 0)
	if exact[0].Match != true {
		t.Errorf("row 0 should match: %+v", exact[0])
	}
	if exact[1].Match {
		t.Error("row 1 should diverge under exact comparison")
	}
	if exact[1].Reason == "" {
		t.Error("divergence should name the field")
	}

	// The same drift passes under a float tolerance.
	loose := Compare(got, want, nil, 1e-3)
	if !loose[1].Match {
		t.Errorf("row 1 should match within tolerance: %s", loose[1].Reason)
	}
}

func TestCompare_AlertFlagAlwaysExact(t *testing.T) {
	got := []engine.Result{{Novelty: 0.5, KL: 1, Fisher: 1, TokenCount: 3, Alert: false}}
	want := toExpected(got)
	want[0].IsAlert = true

	comparisons := Compare(got, want, nil, 1.0) // generous tolerance
	if comparisons[0].Match {
		t.Error("alert flag mismatch must diverge regardless of tolerance")
	}
}

func TestCompare_TruncatesToShorterSide(t *testing.T) {
	got := []engine.Result{{Novelty: 1, KL: 1, Fisher: 1, TokenCount: 1}}
	want := make([]ExpectedResult, 3)

	comparisons := Compare(got, want, nil, 0)
	if len(comparisons) != 1 {
		t.Errorf("expected 1 comparison, got %d", len(comparisons))
	}
}

// #endregion compare-tests
