package engine

// #region functional

// Novelty combines the distribution and sensitivity scores with a length
// penalty:
//
//	(kl * fisher) / ((tokenCount/normalizer) + eps)
//
// Pure arithmetic over its arguments; a zero fisher always yields zero, and
// for a fixed kl*fisher product the score strictly decreases as tokenCount
// grows.
func Novelty(kl, fisher float64, tokenCount int, normalizer, eps float64) float64 {
	return (kl * fisher) / ((float64(tokenCount) / normalizer) + eps)
}

// #endregion functional
