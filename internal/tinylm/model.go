package tinylm

import (
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/model"
)

// #region parameters

// param couples a named weight matrix with its gradient buffer.
type param struct {
	name  string
	value *mat.Dense
	grad  *mat.Dense
}

func newParam(name string, rows, cols int) *param {
	return &param{
		name:  name,
		value: mat.NewDense(rows, cols, nil),
		grad:  mat.NewDense(rows, cols, nil),
	}
}

// #endregion parameters

// #region model

// Model is a small byte-level causal transformer: learned token and position
// embeddings, pre-norm blocks with single-head causal attention and a GELU
// MLP (no biases), a final RMSNorm, and an untied output projection named
// lm_head. Weights are fixed after construction; forward passes allocate
// fresh scratch and only LossBackward/ZeroGrad touch the gradient buffers.
// Not safe for concurrent use; callers serialize access.
type Model struct {
	config Config
	blocks []*blockParams

	wte    *param // (V x D) token embeddings
	wpe    *param // (T x D) position embeddings
	lnf    *param // (1 x D) final norm gain
	lmHead *param // (D x V) output projection, untied from wte

	params []*param // enumeration order for Parameters()
}

type blockParams struct {
	ln1 *param // (1 x D)
	wq  *param // (D x D)
	wk  *param // (D x D)
	wv  *param // (D x D)
	wo  *param // (D x D)
	ln2 *param // (1 x D)
	fc1 *param // (D x H)
	fc2 *param // (H x D)
}

// New builds the model and deterministically initializes its weights from
// the configured seed.
func New(config Config) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("tinylm config: %w", err)
	}
	v, t, d, h := config.VocabSize, config.ContextSize, config.EmbedDim, config.HiddenDim

	m := &Model{config: config}
	m.wte = newParam("wte", v, d)
	m.wpe = newParam("wpe", t, d)
	m.params = append(m.params, m.wte, m.wpe)

	for i := 0; i < config.NumBlocks; i++ {
		prefix := fmt.Sprintf("block%d.", i)
		b := &blockParams{
			ln1: newParam(prefix+"ln1", 1, d),
			wq:  newParam(prefix+"attn.wq", d, d),
			wk:  newParam(prefix+"attn.wk", d, d),
			wv:  newParam(prefix+"attn.wv", d, d),
			wo:  newParam(prefix+"attn.wo", d, d),
			ln2: newParam(prefix+"ln2", 1, d),
			fc1: newParam(prefix+"mlp.fc1", d, h),
			fc2: newParam(prefix+"mlp.fc2", h, d),
		}
		m.blocks = append(m.blocks, b)
		m.params = append(m.params, b.ln1, b.wq, b.wk, b.wv, b.wo, b.ln2, b.fc1, b.fc2)
	}

	m.lnf = newParam("lnf", 1, d)
	m.lmHead = newParam("lm_head", d, v)
	m.params = append(m.params, m.lnf, m.lmHead)

	m.initWeights()
	return m, nil
}

// initWeights fills parameters in declaration order: norm gains at one,
// everything else scaled normal noise from the seeded source. Skipping the
// gains draws nothing from the source, so the stream stays aligned.
func (m *Model) initWeights() {
	rng := rand.New(rand.NewSource(m.config.Seed))
	const scale = 0.02
	for _, p := range m.params {
		raw := p.value.RawMatrix()
		if isNormGain(p.name) {
			for i := range raw.Data {
				raw.Data[i] = 1
			}
			continue
		}
		for i := range raw.Data {
			raw.Data[i] = rng.NormFloat64() * scale
		}
	}
}

func isNormGain(name string) bool {
	return strings.HasSuffix(name, "ln1") || strings.HasSuffix(name, "ln2") || name == "lnf"
}

// ID returns the configured model identifier.
func (m *Model) ID() string { return m.config.ID }

// Config returns the shape the model was built with.
func (m *Model) Config() Config { return m.config }

// #endregion model

// #region capability

// Tokenize maps each byte of text to its own token id, truncating to the
// context window (the head of the sequence is kept).
func (m *Model) Tokenize(text string) ([]int, error) {
	bs := []byte(text)
	if len(bs) > m.config.ContextSize {
		bs = bs[:m.config.ContextSize]
	}
	ids := make([]int, len(bs))
	for i, b := range bs {
		ids[i] = int(b)
	}
	return ids, nil
}

// Logits runs a forward pass and returns the final-position next-token
// logits.
func (m *Model) Logits(ids []int) ([]float64, error) {
	st, err := m.forward(ids)
	if err != nil {
		return nil, fmt.Errorf("tinylm forward: %w", err)
	}
	out := make([]float64, m.config.VocabSize)
	mat.Row(out, len(ids)-1, st.logits)
	return out, nil
}

// Parameters returns named gradient views in declaration order. The slices
// alias the model's buffers and reflect the latest backward pass.
func (m *Model) Parameters() []model.Parameter {
	out := make([]model.Parameter, len(m.params))
	for i, p := range m.params {
		out[i] = model.Parameter{Name: p.name, Grad: p.grad.RawMatrix().Data}
	}
	return out
}

// ZeroGrad clears every gradient buffer.
func (m *Model) ZeroGrad() {
	for _, p := range m.params {
		raw := p.grad.RawMatrix()
		for i := range raw.Data {
			raw.Data[i] = 0
		}
	}
}

func (m *Model) VocabSize() int   { return m.config.VocabSize }
func (m *Model) ContextSize() int { return m.config.ContextSize }

// #endregion capability

// #region forward

// forwardState carries the activations the backward pass reuses.
type forwardState struct {
	ids    []int
	x      *mat.Dense // (T x D) embedding sum
	blocks []*blockState
	h      *mat.Dense // (T x D) final residual stream
	normed *mat.Dense // (T x D) after final norm
	lnfRMS []float64
	logits *mat.Dense // (T x V)
}

type blockState struct {
	in      *mat.Dense // residual input
	norm1   *mat.Dense
	rms1    []float64
	q, k, v *mat.Dense
	attnW   *mat.Dense // (T x T) causal softmax weights
	attnOut *mat.Dense // attnW * v, before the output projection
	mid     *mat.Dense // residual after attention
	norm2   *mat.Dense
	rms2    []float64
	hPre    *mat.Dense // (T x H) MLP pre-activation
	hAct    *mat.Dense // gelu(hPre)
}

func (m *Model) forward(ids []int) (*forwardState, error) {
	t := len(ids)
	if t == 0 {
		return nil, fmt.Errorf("empty token sequence")
	}
	if t > m.config.ContextSize {
		return nil, fmt.Errorf("sequence length %d exceeds context %d", t, m.config.ContextSize)
	}
	for _, id := range ids {
		if id < 0 || id >= m.config.VocabSize {
			return nil, fmt.Errorf("token id %d outside vocab of %d", id, m.config.VocabSize)
		}
	}

	d := m.config.EmbedDim
	st := &forwardState{ids: ids}

	x := mat.NewDense(t, d, nil)
	for pos, id := range ids {
		for j := 0; j < d; j++ {
			x.Set(pos, j, m.wte.value.At(id, j)+m.wpe.value.At(pos, j))
		}
	}
	st.x = x

	cur := x
	for _, b := range m.blocks {
		bs := &blockState{in: cur}
		bs.norm1, bs.rms1 = rmsNorm(cur, b.ln1.value)
		bs.q = matMul(bs.norm1, b.wq.value)
		bs.k = matMul(bs.norm1, b.wk.value)
		bs.v = matMul(bs.norm1, b.wv.value)
		bs.attnW = causalAttentionWeights(bs.q, bs.k)
		bs.attnOut = matMul(bs.attnW, bs.v)
		bs.mid = matAdd(cur, matMul(bs.attnOut, b.wo.value))

		bs.norm2, bs.rms2 = rmsNorm(bs.mid, b.ln2.value)
		bs.hPre = matMul(bs.norm2, b.fc1.value)
		bs.hAct = applyGELU(bs.hPre)
		cur = matAdd(bs.mid, matMul(bs.hAct, b.fc2.value))

		st.blocks = append(st.blocks, bs)
	}

	st.h = cur
	st.normed, st.lnfRMS = rmsNorm(cur, m.lnf.value)
	st.logits = matMul(st.normed, m.lmHead.value)
	return st, nil
}

// #endregion forward
