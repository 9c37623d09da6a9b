package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region parallel-run

// EngineFactory builds an independent engine over its own model replica.
// Replicas built from the same config and seed carry identical weights, so a
// parallel scan scores exactly as a sequential one would.
type EngineFactory func() (*engine.Engine, error)

// ParallelRun fans texts out over worker engines and returns results in input
// order. Each worker owns its engine for the whole run; no gradient state is
// ever shared across goroutines. The first failure cancels the group.
func ParallelRun(ctx context.Context, newEngine EngineFactory, workers int, texts []string) ([]engine.Result, error) {
	if newEngine == nil {
		return nil, fmt.Errorf("parallel run: nil engine factory")
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(texts) {
		workers = len(texts)
	}
	results := make([]engine.Result, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	indexes := make(chan int)

	g.Go(func() error {
		defer close(indexes)
		for i := range texts {
			select {
			case indexes <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			eng, err := newEngine()
			if err != nil {
				return fmt.Errorf("build engine replica: %w", err)
			}
			for i := range indexes {
				res, err := eng.Evaluate(texts[i])
				if err != nil {
					return fmt.Errorf("text %d: %w", i, err)
				}
				results[i] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// #endregion parallel-run
