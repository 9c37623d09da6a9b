package tinylm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const rmsEps = 1e-5

// #region dense-helpers

func matMul(a, b mat.Matrix) *mat.Dense {
	ar, _ := a.Dims()
	_, bc := b.Dims()
	out := mat.NewDense(ar, bc, nil)
	out.Mul(a, b)
	return out
}

func matAdd(a, b mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Add(a, b)
	return out
}

func addInto(dst *mat.Dense, src mat.Matrix) {
	dst.Add(dst, src)
}

func matScale(f float64, a *mat.Dense) *mat.Dense {
	a.Scale(f, a)
	return a
}

// #endregion dense-helpers

// #region rmsnorm

// rmsNorm normalizes each row of x by its root mean square and applies the
// gain vector. Returns the normalized rows and the per-row rms values the
// backward pass needs.
func rmsNorm(x, gain *mat.Dense) (*mat.Dense, []float64) {
	t, d := x.Dims()
	out := mat.NewDense(t, d, nil)
	rms := make([]float64, t)
	for i := 0; i < t; i++ {
		var ss float64
		for j := 0; j < d; j++ {
			v := x.At(i, j)
			ss += v * v
		}
		r := math.Sqrt(ss/float64(d) + rmsEps)
		rms[i] = r
		for j := 0; j < d; j++ {
			out.Set(i, j, x.At(i, j)/r*gain.At(0, j))
		}
	}
	return out, rms
}

// rmsNormBackward propagates dy through rmsNorm, returning dx and the gain
// gradient. For y_j = x_j*g_j/r with r = sqrt(mean(x^2)+eps):
//
//	dx_j = dy_j*g_j/r - x_j * sum_k(dy_k*g_k*x_k) / (d*r^3)
func rmsNormBackward(x, gain *mat.Dense, rms []float64, dy *mat.Dense) (*mat.Dense, *mat.Dense) {
	t, d := x.Dims()
	dx := mat.NewDense(t, d, nil)
	dGain := mat.NewDense(1, d, nil)
	n := float64(d)
	for i := 0; i < t; i++ {
		r := rms[i]
		var s float64
		for j := 0; j < d; j++ {
			s += dy.At(i, j) * gain.At(0, j) * x.At(i, j)
		}
		for j := 0; j < d; j++ {
			xv := x.At(i, j)
			dx.Set(i, j, dy.At(i, j)*gain.At(0, j)/r-xv*s/(n*r*r*r))
			dGain.Set(0, j, dGain.At(0, j)+dy.At(i, j)*xv/r)
		}
	}
	return dx, dGain
}

// #endregion rmsnorm

// #region gelu

const geluC = 0.7978845608028654 // sqrt(2/pi)

// gelu is the tanh approximation used by GPT-style models.
func gelu(x float64) float64 {
	u := geluC * (x + 0.044715*x*x*x)
	return 0.5 * x * (1 + math.Tanh(u))
}

func geluPrime(x float64) float64 {
	x2 := x * x
	u := geluC * (x + 0.044715*x*x2)
	th := math.Tanh(u)
	du := geluC * (1 + 3*0.044715*x2)
	return 0.5*(1+th) + 0.5*x*(1-th*th)*du
}

func applyGELU(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, gelu(x.At(i, j)))
		}
	}
	return out
}

// geluBackward returns dPre = dAct * gelu'(pre), element-wise.
func geluBackward(pre, dAct *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, dAct.At(i, j)*geluPrime(pre.At(i, j)))
		}
	}
	return out
}

// #endregion gelu

// #region attention-weights

// causalAttentionWeights computes softmax(q*k^T/sqrt(d)) row by row over the
// causal prefix, with the usual max subtraction for stability. Future
// positions hold exact zeros.
func causalAttentionWeights(q, k *mat.Dense) *mat.Dense {
	t, d := q.Dims()
	scores := mat.NewDense(t, t, nil)
	scores.Mul(q, k.T())
	scores.Scale(1/math.Sqrt(float64(d)), scores)

	w := mat.NewDense(t, t, nil)
	for i := 0; i < t; i++ {
		maxv := math.Inf(-1)
		for j := 0; j <= i; j++ {
			if s := scores.At(i, j); s > maxv {
				maxv = s
			}
		}
		var sum float64
		for j := 0; j <= i; j++ {
			e := math.Exp(scores.At(i, j) - maxv)
			w.Set(i, j, e)
			sum += e
		}
		for j := 0; j <= i; j++ {
			w.Set(i, j, w.At(i, j)/sum)
		}
	}
	return w
}

// softmaxRowsBackward propagates through the row softmax:
// dS_ij = A_ij * (dA_ij - sum_k A_ik*dA_ik). Masked positions carry zero
// weight, so their (meaningless) upstream values drop out on their own.
func softmaxRowsBackward(weights, dWeights *mat.Dense) *mat.Dense {
	t, _ := weights.Dims()
	out := mat.NewDense(t, t, nil)
	for i := 0; i < t; i++ {
		var dot float64
		for j := 0; j < t; j++ {
			dot += weights.At(i, j) * dWeights.At(i, j)
		}
		for j := 0; j < t; j++ {
			out.Set(i, j, weights.At(i, j)*(dWeights.At(i, j)-dot))
		}
	}
	return out
}

// #endregion attention-weights
