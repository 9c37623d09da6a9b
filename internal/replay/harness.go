package replay

import (
	"fmt"
	"math"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tinylm"
)

// #region types

// Comparison is the verdict for one replayed text.
type Comparison struct {
	Index  int
	Text   string
	Got    ExpectedResult
	Want   ExpectedResult
	Match  bool
	Reason string // first diverging field, empty on match
}

// Summary aggregates a replay comparison.
type Summary struct {
	Total    int
	Matches  int
	Diverged int
}

// #endregion types

// #region build

// NewEngine rebuilds the exact engine a fixture was recorded with: same
// model seed and shape, same scoring parameters.
func NewEngine(m ModelSpec, e EngineSpec) (*engine.Engine, error) {
	backend, err := tinylm.New(m.ToModelConfig())
	if err != nil {
		return nil, fmt.Errorf("rebuild model: %w", err)
	}
	eng, err := engine.New(backend, e.ToEngineConfig())
	if err != nil {
		return nil, fmt.Errorf("rebuild engine: %w", err)
	}
	return eng, nil
}

// #endregion build

// #region replay

// Replay re-evaluates texts in order on the given engine.
func Replay(eng *engine.Engine, texts []string) ([]engine.Result, error) {
	results := make([]engine.Result, 0, len(texts))
	for i, text := range texts {
		res, err := eng.Evaluate(text)
		if err != nil {
			return results, fmt.Errorf("replay text %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// #endregion replay

// #region compare

// Compare checks replayed results against recorded ones. Scores must agree
// within tolerance (exact when tolerance is zero, the same-platform default);
// token counts and alert flags must always be exact.
func Compare(got []engine.Result, want []ExpectedResult, texts []string, tolerance float64) []Comparison {
	n := len(got)
	if len(want) < n {
		n = len(want)
	}

	comparisons := make([]Comparison, 0, n)
	for i := 0; i < n; i++ {
		c := Comparison{
			Index: i,
			Got: ExpectedResult{
				Novelty: got[i].Novelty,
				KL:      got[i].KL,
				Fisher:  got[i].Fisher,
				Tokens:  got[i].TokenCount,
				IsAlert: got[i].Alert,
			},
			Want:  want[i],
			Match: true,
		}
		if i < len(texts) {
			c.Text = texts[i]
		}

		switch {
		case !withinTolerance(c.Got.Novelty, c.Want.Novelty, tolerance):
			c.fail(fmt.Sprintf("novelty %g != %g", c.Got.Novelty, c.Want.Novelty))
		case !withinTolerance(c.Got.KL, c.Want.KL, tolerance):
			c.fail(fmt.Sprintf("kl %g != %g", c.Got.KL, c.Want.KL))
		case !withinTolerance(c.Got.Fisher, c.Want.Fisher, tolerance):
			c.fail(fmt.Sprintf("fisher %g != %g", c.Got.Fisher, c.Want.Fisher))
		case c.Got.Tokens != c.Want.Tokens:
			c.fail(fmt.Sprintf("tokens %d != %d", c.Got.Tokens, c.Want.Tokens))
		case c.Got.IsAlert != c.Want.IsAlert:
			c.fail(fmt.Sprintf("alert %v != %v", c.Got.IsAlert, c.Want.IsAlert))
		}
		comparisons = append(comparisons, c)
	}
	return comparisons
}

func (c *Comparison) fail(reason string) {
	c.Match = false
	c.Reason = reason
}

// withinTolerance treats zero tolerance as exact equality.
func withinTolerance(got, want, tolerance float64) bool {
	if tolerance == 0 {
		return got == want
	}
	return math.Abs(got-want) <= tolerance
}

// Summarize counts a comparison's matches and divergences.
func Summarize(comparisons []Comparison) Summary {
	s := Summary{Total: len(comparisons)}
	for _, c := range comparisons {
		if c.Match {
			s.Matches++
		} else {
			s.Diverged++
		}
	}
	return s
}

// #endregion compare
