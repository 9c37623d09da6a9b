package orchestrator

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region summarize

// summarize aggregates a run's results. An empty run yields a zero Summary.
func summarize(results []engine.Result) Summary {
	s := Summary{Texts: len(results)}
	if len(results) == 0 {
		return s
	}

	novelty := make([]float64, len(results))
	kl := make([]float64, len(results))
	fisher := make([]float64, len(results))
	for i, r := range results {
		novelty[i] = r.Novelty
		kl[i] = r.KL
		fisher[i] = r.Fisher
		s.TotalTokens += r.TokenCount
		if r.Alert {
			s.Alerts++
		}
		if r.Novelty > s.MaxNovelty {
			s.MaxNovelty = r.Novelty
		}
	}

	s.MeanNovelty = stat.Mean(novelty, nil)
	s.MeanKL = stat.Mean(kl, nil)
	s.MeanFisher = stat.Mean(fisher, nil)

	sorted := append([]float64(nil), novelty...)
	sort.Float64s(sorted)
	s.P95Novelty = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return s
}

// #endregion summarize
