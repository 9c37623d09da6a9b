package main

// #region imports
import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/config"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/logging"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/meter"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/orchestrator"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/replay"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/report"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/store"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tinylm"
)

// #endregion imports

// #region demo-dataset

// demoTexts is the built-in five-text dataset.
var demoTexts = []string{
	"The quick brown fox jumps over the lazy dog.",
	"A sequence of random numbers: 4, 8, 15, 16, 23, 42.",
	"I like apples.",
	"The Schrödinger equation describes the wave function of a quantum system.",
	"Sphinx of black quartz, judge my vow.",
}

// #endregion demo-dataset

// #region main

func main() {
	configPath := flag.String("config", "", "YAML config file")
	inputPath := flag.String("input", "", "text file, one text per line; '-' for stdin")
	demo := flag.Bool("demo", false, "scan the built-in demo dataset")
	dbPath := flag.String("db", "", "sqlite database path (overrides config)")
	csvPath := flag.String("csv", "", "CSV export path (overrides config)")
	workers := flag.Int("workers", 0, "parallel engine replicas (overrides config)")
	quiet := flag.Bool("quiet", false, "suppress per-text console lines")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[SCAN] %v", err)
	}
	if *dbPath != "" {
		cfg.Run.DBPath = *dbPath
	}
	if *csvPath != "" {
		cfg.Run.CSVPath = *csvPath
	}
	if *workers > 0 {
		cfg.Run.Workers = *workers
	}

	texts, interactive, err := resolveInput(*inputPath, *demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if interactive {
		if err := runREPL(cfg); err != nil {
			log.Fatalf("[SCAN] %v", err)
		}
		return
	}

	if err := runScan(cfg, texts, *quiet); err != nil {
		log.Fatalf("[SCAN] %v", err)
	}
}

// resolveInput decides where texts come from: the demo dataset, a file,
// stdin, or (TTY with no source) the interactive loop.
func resolveInput(inputPath string, demo bool) ([]string, bool, error) {
	switch {
	case demo:
		return demoTexts, false, nil
	case inputPath == "-":
		return readLines(os.Stdin)
	case inputPath != "":
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, false, fmt.Errorf("open input %s: %w", inputPath, err)
		}
		defer f.Close()
		return readLines(f)
	case !isatty.IsTerminal(os.Stdin.Fd()):
		return readLines(os.Stdin)
	default:
		return nil, true, nil
	}
}

func readLines(f *os.File) ([]string, bool, error) {
	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("read input: %w", err)
	}
	if len(texts) == 0 {
		return nil, false, fmt.Errorf("no input texts")
	}
	return texts, false, nil
}

// #endregion main

// #region scan

func runScan(cfg config.File, texts []string, quiet bool) error {
	if cfg.Run.Workers > 1 {
		return runParallel(cfg, texts, quiet)
	}

	m, err := tinylm.New(cfg.ModelConfig())
	if err != nil {
		return err
	}
	eng, err := engine.New(m, cfg.EngineConfig())
	if err != nil {
		return err
	}

	sink, closeSinks, err := buildSinks(cfg, quiet)
	if err != nil {
		return err
	}
	defer closeSinks()

	deps := orchestrator.Deps{
		Engine:  eng,
		Sink:    sink,
		Meter:   meter.New(cfg.MeterConfig()),
		ModelID: m.ID(),
	}
	if cfg.Run.DBPath != "" {
		st, err := store.NewStore(cfg.Run.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		deps.Store = st
		deps.ConfigJSON = runConfigJSON(cfg)
	}

	o, err := orchestrator.New(deps)
	if err != nil {
		return err
	}
	rep, err := o.RunSlice(context.Background(), texts)
	printSummary(rep.Summary)
	printEnergy(rep.Energy)
	if rep.RunID != "" {
		fmt.Printf("\nRun ID: %s\n", rep.RunID)
	}
	return err
}

// runParallel fans the texts over worker replicas, then streams the ordered
// results to the sinks and the store.
func runParallel(cfg config.File, texts []string, quiet bool) error {
	factory := func() (*engine.Engine, error) {
		m, err := tinylm.New(cfg.ModelConfig())
		if err != nil {
			return nil, err
		}
		return engine.New(m, cfg.EngineConfig())
	}

	results, err := orchestrator.ParallelRun(context.Background(), factory, cfg.Run.Workers, texts)
	if err != nil {
		return err
	}

	sink, closeSinks, err := buildSinks(cfg, quiet)
	if err != nil {
		return err
	}
	defer closeSinks()

	var st *store.Store
	runID := ""
	if cfg.Run.DBPath != "" {
		st, err = store.NewStore(cfg.Run.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.BeginRun(cfg.Model.ID, runConfigJSON(cfg))
		if err != nil {
			return err
		}
		runID = run.RunID
	}

	alerts := 0
	for step, res := range results {
		if res.Alert {
			alerts++
		}
		if sink != nil {
			if err := sink.Emit(step, res); err != nil {
				return err
			}
		}
		if st != nil {
			if err := st.InsertEvaluation(store.EvaluationRecord{
				EvalID: res.ID, RunID: runID, Step: step, Text: res.Text,
				Novelty: res.Novelty, KL: res.KL, Fisher: res.Fisher,
				TokenCount: res.TokenCount, Alert: res.Alert, EvaluatedAt: res.EvaluatedAt,
			}); err != nil {
				return err
			}
			if res.Alert {
				if _, err := logging.LogAlert(st.DB(), logging.AlertEntry{
					RunID:     runID,
					EvalID:    res.ID,
					Novelty:   res.Novelty,
					Threshold: cfg.Engine.NoveltyThreshold,
				}); err != nil {
					return err
				}
			}
		}
	}
	if st != nil {
		if err := st.FinishRun(runID, len(results), alerts); err != nil {
			return err
		}
		fmt.Printf("\nRun ID: %s\n", runID)
	}
	return nil
}

// buildSinks assembles the console and CSV sinks per the config.
func buildSinks(cfg config.File, quiet bool) (report.Sink, func(), error) {
	var sinks []report.Sink
	if !quiet {
		sinks = append(sinks, report.NewConsoleSink())
	}
	if cfg.Run.CSVPath != "" {
		csvSink, err := report.NewCSVSink(cfg.Run.CSVPath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, csvSink)
	}
	if len(sinks) == 0 {
		return nil, func() {}, nil
	}
	multi := report.NewMultiSink(sinks...)
	return multi, func() {
		if err := multi.Close(); err != nil {
			log.Printf("[SCAN] close sinks: %v", err)
		}
	}, nil
}

// runConfigJSON serializes the replayable model+engine payload persisted
// with each run.
func runConfigJSON(cfg config.File) string {
	data, err := json.Marshal(replay.RunConfig{
		Model:  replay.FromModelConfig(cfg.ModelConfig()),
		Engine: replay.FromEngineConfig(cfg.EngineConfig()),
	})
	if err != nil {
		return ""
	}
	return string(data)
}

// #endregion scan

// #region repl

// runREPL scores one text per prompt line; every line is an independent
// evaluation with no state carried across turns.
func runREPL(cfg config.File) error {
	m, err := tinylm.New(cfg.ModelConfig())
	if err != nil {
		return err
	}
	eng, err := engine.New(m, cfg.EngineConfig())
	if err != nil {
		return err
	}
	sink := report.NewConsoleSink()

	fmt.Println("Novelty scan ready.")
	fmt.Printf("  model: %s | threshold: %.2f | targets: %s\n",
		m.ID(), cfg.Engine.NoveltyThreshold, strings.Join(cfg.Engine.TargetLayers, ","))
	fmt.Println("Type a text (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	step := 0
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		res, err := eng.Evaluate(text)
		if err != nil {
			log.Printf("[SCAN] evaluate: %v", err)
			continue
		}
		if err := sink.Emit(step, res); err != nil {
			log.Printf("[SCAN] emit: %v", err)
		}
		fmt.Printf("  kl=%.4f fisher=%.6f tokens=%d\n", res.KL, res.Fisher, res.TokenCount)
		step++
	}
	return scanner.Err()
}

// #endregion repl

// #region summary-output

func printSummary(s orchestrator.Summary) {
	fmt.Printf("\n--- Scan Summary ---\n")
	fmt.Printf("Texts          : %d\n", s.Texts)
	fmt.Printf("Alerts         : %d\n", s.Alerts)
	fmt.Printf("Mean novelty   : %.4f\n", s.MeanNovelty)
	fmt.Printf("Max novelty    : %.4f\n", s.MaxNovelty)
	fmt.Printf("P95 novelty    : %.4f\n", s.P95Novelty)
	fmt.Printf("Mean KL        : %.4f\n", s.MeanKL)
	fmt.Printf("Mean Fisher    : %.6f\n", s.MeanFisher)
	fmt.Printf("Total tokens   : %d\n", s.TotalTokens)
}

func printEnergy(e meter.Summary) {
	if e.Samples == 0 {
		return
	}
	fmt.Printf("\n--- Energy Baseline ---\n")
	fmt.Printf("Total bits           : %d\n", e.TotalBits)
	fmt.Printf("Mean CPU power       : %.4f W\n", e.MeanCPUWatts)
	fmt.Printf("CPU Energy Density   : %.2f nJ/bit\n", e.MeanNJPerBit)
	fmt.Printf("FPGA Energy Density  : %.4f nJ/bit\n", e.FPGANJPerBit)
	fmt.Printf("Thermal Advantage    : %.2f%% Reduction\n", e.ThermalAdvantage)
	fmt.Printf("Efficiency Rating    : %.2fx Gain\n", e.EfficiencyRatio)
}

// #endregion summary-output
