package tinylm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestLossBackwardRejectsShortInput(t *testing.T) {
	m := newTestModel(t, testConfig())
	if _, err := m.LossBackward(nil); err == nil {
		t.Error("empty sequence accepted")
	}
	if _, err := m.LossBackward([]int{5}); err == nil {
		t.Error("single-token sequence accepted")
	}
}

func TestLossNearUniformAtInit(t *testing.T) {
	m := newTestModel(t, testConfig())
	loss, err := m.LossBackward([]int{104, 101, 108, 108, 111})
	if err != nil {
		t.Fatalf("LossBackward: %v", err)
	}
	logV := math.Log(float64(m.VocabSize()))
	if math.Abs(loss-logV) > 1.0 {
		t.Fatalf("initial loss %.4f, want near log(V) = %.4f", loss, logV)
	}
}

// The loss must be the mean cross-entropy of each position predicting its
// successor, which means it has to agree with per-prefix Logits calls.
func TestLossMatchesPrefixLogits(t *testing.T) {
	m := newTestModel(t, testConfig())
	ids := []int{104, 101, 108, 108, 111}
	loss, err := m.LossBackward(ids)
	if err != nil {
		t.Fatalf("LossBackward: %v", err)
	}

	var want float64
	n := float64(len(ids) - 1)
	for pos := 0; pos < len(ids)-1; pos++ {
		logits, err := m.Logits(ids[:pos+1])
		if err != nil {
			t.Fatalf("Logits: %v", err)
		}
		want += (floats.LogSumExp(logits) - logits[ids[pos+1]]) / n
	}
	if diff := math.Abs(loss - want); diff > 1e-10 {
		t.Fatalf("loss %.12f, prefix reconstruction %.12f (diff %g)", loss, want, diff)
	}
}

func TestGradientsAccumulateAndClear(t *testing.T) {
	m := newTestModel(t, testConfig())
	ids := []int{104, 101, 108, 108, 111}

	sum := func() float64 {
		var s float64
		for _, p := range m.params {
			for _, g := range p.grad.RawMatrix().Data {
				s += math.Abs(g)
			}
		}
		return s
	}

	if _, err := m.LossBackward(ids); err != nil {
		t.Fatalf("LossBackward: %v", err)
	}
	first := sum()
	if first == 0 {
		t.Fatal("no gradient accumulated")
	}

	if _, err := m.LossBackward(ids); err != nil {
		t.Fatalf("LossBackward: %v", err)
	}
	second := sum()
	if math.Abs(second-2*first) > 1e-9*first {
		t.Fatalf("two passes accumulated %.9g, want %.9g", second, 2*first)
	}

	m.ZeroGrad()
	if got := sum(); got != 0 {
		t.Fatalf("gradients sum to %g after ZeroGrad", got)
	}
}

func TestBackwardMatchesNumericalGradient(t *testing.T) {
	m := newTestModel(t, testConfig())
	ids := []int{104, 101, 108, 108, 111}
	if _, err := m.LossBackward(ids); err != nil {
		t.Fatalf("LossBackward: %v", err)
	}

	lossAt := func() float64 {
		st, err := m.forward(ids)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		loss, _ := m.lossGrad(st)
		return loss
	}

	// Embedding rows only get gradient when their token or position occurs.
	extra := map[string][][2]int{
		"wte": {{104, 0}, {108, 5}, {111, 2}},
		"wpe": {{0, 1}, {4, 3}},
	}

	const h = 1e-5
	for _, p := range m.params {
		r, c := p.value.Dims()
		picks := [][2]int{{0, 0}, {r / 2, c / 2}, {r - 1, c - 1}}
		picks = append(picks, extra[p.name]...)
		for _, pk := range picks {
			i, j := pk[0], pk[1]
			analytic := p.grad.At(i, j)
			orig := p.value.At(i, j)

			p.value.Set(i, j, orig+h)
			up := lossAt()
			p.value.Set(i, j, orig-h)
			down := lossAt()
			p.value.Set(i, j, orig)

			numeric := (up - down) / (2 * h)
			scale := math.Max(1e-5, math.Max(math.Abs(analytic), math.Abs(numeric)))
			if math.Abs(analytic-numeric)/scale > 1e-4 {
				t.Errorf("%s[%d,%d]: analytic %.10g, numeric %.10g", p.name, i, j, analytic, numeric)
			}
		}
	}
}
