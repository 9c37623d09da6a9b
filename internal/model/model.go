package model

// #region parameter

// Parameter is a named, ordered view of one model weight tensor's gradient
// buffer. Grad aliases the backend's storage: it reflects the most recent
// backward pass and is zeroed by ZeroGrad. A nil Grad means the parameter
// never receives gradients.
type Parameter struct {
	Name string
	Grad []float64
}

// #endregion parameter

// #region capability

// Model is the capability surface the scoring engine needs from a causal
// language model. Implementations own all weight and gradient state; callers
// must never mutate weights through this interface.
type Model interface {
	// Tokenize converts text to token ids, truncating to the context window.
	// Empty text yields an empty slice, not an error.
	Tokenize(text string) ([]int, error)

	// Logits runs a forward pass and returns the final-position next-token
	// logits (length VocabSize). No gradient state is touched.
	Logits(ids []int) ([]float64, error)

	// LossBackward computes the causal LM loss with the inputs as labels
	// (targets shifted internally) and accumulates gradients into the
	// parameter buffers. Sequences shorter than two tokens cannot form a
	// next-token pair and return an error.
	LossBackward(ids []int) (float64, error)

	// Parameters returns named gradient views in a stable order.
	Parameters() []Parameter

	// ZeroGrad clears all gradient buffers.
	ZeroGrad()

	VocabSize() int
	ContextSize() int
}

// #endregion capability
