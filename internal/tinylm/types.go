package tinylm

import "fmt"

// #region config

// Config describes the reference model's shape and initialization seed.
// Two models built from the same Config are bit-identical.
type Config struct {
	ID          string // identifier recorded with runs
	Seed        int64  // weight initialization seed
	VocabSize   int    // byte-level: must cover the full byte range
	ContextSize int    // maximum sequence length
	EmbedDim    int    // residual stream width
	HiddenDim   int    // MLP hidden width
	NumBlocks   int    // transformer blocks
}

// DefaultConfig returns the byte-level reference model shape.
func DefaultConfig() Config {
	return Config{
		ID:          "tinylm-byte-v1",
		Seed:        42,
		VocabSize:   256,
		ContextSize: 64,
		EmbedDim:    32,
		HiddenDim:   128,
		NumBlocks:   2,
	}
}

// Validate checks the shape parameters.
func (c Config) Validate() error {
	if c.VocabSize < 256 {
		return fmt.Errorf("vocab size %d does not cover the byte range", c.VocabSize)
	}
	if c.ContextSize < 2 {
		return fmt.Errorf("context size must be at least 2, got %d", c.ContextSize)
	}
	if c.EmbedDim < 1 {
		return fmt.Errorf("embed dim must be positive, got %d", c.EmbedDim)
	}
	if c.HiddenDim < 1 {
		return fmt.Errorf("hidden dim must be positive, got %d", c.HiddenDim)
	}
	if c.NumBlocks < 1 {
		return fmt.Errorf("need at least one block, got %d", c.NumBlocks)
	}
	return nil
}

// #endregion config
