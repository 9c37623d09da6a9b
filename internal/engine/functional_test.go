package engine

import (
	"math"
	"testing"
)

func TestNoveltyZeroFactors(t *testing.T) {
	if got := Novelty(0, 5.0, 10, 512.0, 1e-6); got != 0 {
		t.Fatalf("zero KL should give zero novelty, got %g", got)
	}
	if got := Novelty(2.0, 0, 10, 512.0, 1e-6); got != 0 {
		t.Fatalf("zero Fisher should give zero novelty, got %g", got)
	}
}

func TestNoveltyKnownValue(t *testing.T) {
	// 512 tokens with normalizer 512 puts the denominator at 1+eps.
	got := Novelty(2.0, 0.5, 512, 512.0, 1e-6)
	want := 1.0 / (1.0 + 1e-6)
	if math.Abs(got-want) > 1e-15 {
		t.Fatalf("Novelty = %g, want %g", got, want)
	}
}

func TestNoveltyLengthMonotonic(t *testing.T) {
	counts := []int{1, 2, 16, 128, 512, 4096}
	prev := math.Inf(1)
	for _, n := range counts {
		score := Novelty(1.5, 2.0, n, 512.0, 1e-6)
		if !(score < prev) {
			t.Fatalf("score must strictly decrease with token count: %d tokens gave %g (previous %g)", n, score, prev)
		}
		prev = score
	}
}

func TestNoveltyScalesWithProduct(t *testing.T) {
	base := Novelty(1.25, 0.5, 64, 512.0, 1e-6)
	doubled := Novelty(1.25, 1.0, 64, 512.0, 1e-6)
	if doubled != 2*base {
		t.Fatalf("doubling Fisher should double the score: %g vs %g", doubled, base)
	}
}
