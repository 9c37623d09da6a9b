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
	dbPath := flag.String("db", "", "path to scan database")
	runID := flag.String("run", "", "run to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *runID == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/scans.db --run id --out path/to/fixture.json")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, runID, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	rec, err := st.GetRun(runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	evals, err := st.ListEvaluations(runID)
	if err != nil {
		return fmt.Errorf("list evaluations: %w", err)
	}

	fixture, err := replay.FromRun(rec, evals)
	if err != nil {
		return err
	}
	if err := replay.WriteFixture(fixture, outPath); err != nil {
		return err
	}

	fmt.Printf("Wrote fixture to %s (%d texts, %d expected results)\n",
		outPath, len(fixture.Texts), len(fixture.Expected))
	return nil
}

// #endregion export
