package tinylm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region loss

// LossBackward computes the causal LM loss with the inputs as their own
// labels (position t predicts token t+1, mean over the T-1 pairs) and
// accumulates gradients into the parameter buffers. Weights are untouched.
func (m *Model) LossBackward(ids []int) (float64, error) {
	if len(ids) < 2 {
		return 0, fmt.Errorf("need at least two tokens for a next-token loss, got %d", len(ids))
	}
	st, err := m.forward(ids)
	if err != nil {
		return 0, fmt.Errorf("tinylm forward: %w", err)
	}
	loss, dLogits := m.lossGrad(st)
	m.backward(st, dLogits)
	return loss, nil
}

// lossGrad returns the mean shifted cross-entropy and its gradient with
// respect to the logits. The final position predicts nothing and gets a zero
// row.
func (m *Model) lossGrad(st *forwardState) (float64, *mat.Dense) {
	t := len(st.ids)
	v := m.config.VocabSize
	n := float64(t - 1)

	dLogits := mat.NewDense(t, v, nil)
	row := make([]float64, v)
	var loss float64
	for pos := 0; pos < t-1; pos++ {
		mat.Row(row, pos, st.logits)
		lse := floats.LogSumExp(row)
		target := st.ids[pos+1]
		loss += (lse - row[target]) / n
		for j := 0; j < v; j++ {
			g := math.Exp(row[j]-lse) / n
			if j == target {
				g -= 1.0 / n
			}
			dLogits.Set(pos, j, g)
		}
	}
	return loss, dLogits
}

// #endregion loss

// #region backward

// backward pushes dLogits through the network, accumulating into the
// gradient buffers. Mirrors forward exactly, in reverse.
func (m *Model) backward(st *forwardState, dLogits *mat.Dense) {
	// logits = normed * lm_head
	addInto(m.lmHead.grad, matMul(st.normed.T(), dLogits))
	dNormed := matMul(dLogits, m.lmHead.value.T())

	dH, dGainF := rmsNormBackward(st.h, m.lnf.value, st.lnfRMS, dNormed)
	addInto(m.lnf.grad, dGainF)

	invSqrtD := 1 / math.Sqrt(float64(m.config.EmbedDim))

	d := dH
	for i := len(m.blocks) - 1; i >= 0; i-- {
		b := m.blocks[i]
		bs := st.blocks[i]

		// cur = mid + gelu(norm2*fc1)*fc2
		addInto(b.fc2.grad, matMul(bs.hAct.T(), d))
		dHAct := matMul(d, b.fc2.value.T())
		dHPre := geluBackward(bs.hPre, dHAct)
		addInto(b.fc1.grad, matMul(bs.norm2.T(), dHPre))
		dNorm2 := matMul(dHPre, b.fc1.value.T())
		dMid, dGain2 := rmsNormBackward(bs.mid, b.ln2.value, bs.rms2, dNorm2)
		addInto(b.ln2.grad, dGain2)
		addInto(dMid, d) // identity branch of the residual

		// mid = in + (attnW*v)*wo
		addInto(b.wo.grad, matMul(bs.attnOut.T(), dMid))
		dAttnOut := matMul(dMid, b.wo.value.T())
		dAttnW := matMul(dAttnOut, bs.v.T())
		dV := matMul(bs.attnW.T(), dAttnOut)
		dScores := softmaxRowsBackward(bs.attnW, dAttnW)
		dQ := matScale(invSqrtD, matMul(dScores, bs.k))
		dK := matScale(invSqrtD, matMul(dScores.T(), bs.q))

		addInto(b.wq.grad, matMul(bs.norm1.T(), dQ))
		addInto(b.wk.grad, matMul(bs.norm1.T(), dK))
		addInto(b.wv.grad, matMul(bs.norm1.T(), dV))

		dNorm1 := matMul(dQ, b.wq.value.T())
		addInto(dNorm1, matMul(dK, b.wk.value.T()))
		addInto(dNorm1, matMul(dV, b.wv.value.T()))
		dIn, dGain1 := rmsNormBackward(bs.in, b.ln1.value, bs.rms1, dNorm1)
		addInto(b.ln1.grad, dGain1)
		addInto(dIn, dMid) // identity branch of the residual
		d = dIn
	}

	// x = wte[id] + wpe[pos], scattered back by row
	dim := m.config.EmbedDim
	for pos, id := range st.ids {
		for j := 0; j < dim; j++ {
			g := d.At(pos, j)
			m.wte.grad.Set(id, j, m.wte.grad.At(id, j)+g)
			m.wpe.grad.Set(pos, j, m.wpe.grad.At(pos, j)+g)
		}
	}
}

// #endregion backward
