package main

// #region imports
import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/config"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/orchestrator"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/report"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tinylm"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tui"
)

// #endregion imports

// #region main

func main() {
	configPath := flag.String("config", "", "YAML config file")
	inputPath := flag.String("input", "", "text file, one text per line")
	demo := flag.Bool("demo", false, "scan the built-in demo dataset")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[DASH] %v", err)
	}

	texts, err := resolveTexts(*inputPath, *demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	m, err := tinylm.New(cfg.ModelConfig())
	if err != nil {
		log.Fatalf("[DASH] %v", err)
	}
	eng, err := engine.New(m, cfg.EngineConfig())
	if err != nil {
		log.Fatalf("[DASH] %v", err)
	}

	sink := report.NewChannelSink(16)
	o, err := orchestrator.New(orchestrator.Deps{
		Engine:  eng,
		Sink:    sink,
		ModelID: m.ID(),
	})
	if err != nil {
		log.Fatalf("[DASH] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scanErr := startScan(ctx, o, texts, sink)

	tuiErr := tui.Run(sink.Events(), cfg.Engine.NoveltyThreshold)

	// The viewer may quit mid-scan. Stop the producer and drain the channel
	// so a blocked Emit can complete and the scan goroutine can exit.
	cancel()
	for range sink.Events() {
	}
	err = <-scanErr

	if tuiErr != nil {
		log.Fatalf("[DASH] tui: %v", tuiErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[DASH] scan: %v", err)
	}
}

// startScan runs the scan in its own goroutine, feeding the dashboard
// through the channel sink; closing the sink ends the stream on screen.
func startScan(ctx context.Context, o *orchestrator.Orchestrator, texts []string, sink *report.ChannelSink) <-chan error {
	errc := make(chan error, 1)
	go func() {
		_, err := o.RunSlice(ctx, texts)
		sink.Close()
		errc <- err
	}()
	return errc
}

// #endregion main

// #region input

var demoTexts = []string{
	"The quick brown fox jumps over the lazy dog.",
	"A sequence of random numbers: 4, 8, 15, 16, 23, 42.",
	"I like apples.",
	"The Schrödinger equation describes the wave function of a quantum system.",
	"Sphinx of black quartz, judge my vow.",
}

func resolveTexts(inputPath string, demo bool) ([]string, error) {
	if demo || inputPath == "" {
		return demoTexts, nil
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", inputPath, err)
	}
	defer f.Close()

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
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no input texts")
	}
	return texts, nil
}

// #endregion input
