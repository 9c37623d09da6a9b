package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/replay"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to scan database (DB mode)")
	runID := flag.String("run", "", "run to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	tolerance := flag.Float64("tolerance", 0, "score tolerance; 0 means exact")
	flag.Parse()

	fixtureMode := *fixturePath != ""
	dbMode := *dbPath != ""
	if fixtureMode == dbMode || (dbMode && *runID == "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--tolerance f]")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/scans.db --run id [--tolerance f]")
		os.Exit(2)
	}

	var exitCode int
	if fixtureMode {
		exitCode = runFixtureMode(*fixturePath, *tolerance)
	} else {
		exitCode = runDBMode(*dbPath, *runID, *tolerance)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

func runFixtureMode(path string, tolerance float64) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	fmt.Printf("Fixture: %s (%d texts)\n\n", f.Name, len(f.Texts))
	return replayAndCompare(f.Model, f.Engine, f.Texts, f.Expected, tolerance)
}

func runDBMode(dbPath, runID string, tolerance float64) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	run, err := st.GetRun(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get run: %v\n", err)
		return 2
	}
	evals, err := st.ListEvaluations(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list evaluations: %v\n", err)
		return 2
	}
	f, err := replay.FromRun(run, evals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build fixture from run: %v\n", err)
		return 2
	}
	fmt.Printf("Run: %s (%d texts)\n\n", run.RunID, len(f.Texts))
	return replayAndCompare(f.Model, f.Engine, f.Texts, f.Expected, tolerance)
}

// #endregion modes

// #region compare-output

func replayAndCompare(m replay.ModelSpec, e replay.EngineSpec, texts []string, expected []replay.ExpectedResult, tolerance float64) int {
	eng, err := replay.NewEngine(m, e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild: %v\n", err)
		return 2
	}
	results, err := replay.Replay(eng, texts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	comparisons := replay.Compare(results, expected, texts, tolerance)

	fmt.Printf("%-4s| %-10s| %-10s| %-6s| %s\n", "Step", "Recorded", "Replayed", "Match", "Detail")
	fmt.Printf("%-4s+%-11s+%-11s+%-7s+%s\n", "----", "-----------", "-----------", "-------", "--------------------")
	for _, c := range comparisons {
		match := "OK"
		detail := ""
		if !c.Match {
			match = "DIFF"
			detail = c.Reason
		}
		fmt.Printf("%-4d| %-10.4f| %-10.4f| %-6s| %s\n",
			c.Index, c.Want.Novelty, c.Got.Novelty, match, detail)
	}

	summary := replay.Summarize(comparisons)
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n",
		summary.Total, summary.Matches, summary.Diverged)

	if summary.Diverged > 0 {
		return 1
	}
	return 0
}

// #endregion compare-output
