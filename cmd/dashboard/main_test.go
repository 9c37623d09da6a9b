package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/orchestrator"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/report"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/tinylm"
)

// #region helpers

func newScanDeps(t *testing.T, sink *report.ChannelSink) *orchestrator.Orchestrator {
	t.Helper()
	mc := tinylm.DefaultConfig()
	mc.ContextSize = 16
	mc.EmbedDim = 8
	mc.HiddenDim = 16
	mc.NumBlocks = 1
	m, err := tinylm.New(mc)
	if err != nil {
		t.Fatalf("tinylm.New: %v", err)
	}
	eng, err := engine.New(m, engine.DefaultConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	o, err := orchestrator.New(orchestrator.Deps{
		Engine:  eng,
		Sink:    sink,
		ModelID: m.ID(),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	return o
}

// #endregion helpers

// #region quit-tests

func TestScanStopsWhenViewerQuits(t *testing.T) {
	// Small buffer with many texts: without cancel-and-drain the scan
	// goroutine stays blocked in Emit after the viewer stops reading.
	sink := report.NewChannelSink(2)
	o := newScanDeps(t, sink)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("text number %d", i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scanErr := startScan(ctx, o, texts, sink)

	// The viewer reads one event, then quits.
	if _, ok := <-sink.Events(); !ok {
		t.Fatal("expected at least one event before quitting")
	}

	cancel()
	for range sink.Events() {
	}

	select {
	case <-scanErr:
	case <-time.After(5 * time.Second):
		t.Fatal("scan goroutine did not stop after the viewer quit")
	}
}

func TestScanCompletesWhenStreamFullyConsumed(t *testing.T) {
	sink := report.NewChannelSink(2)
	o := newScanDeps(t, sink)
	texts := []string{"first text", "second text", "third text"}

	scanErr := startScan(context.Background(), o, texts, sink)

	seen := 0
	for range sink.Events() {
		seen++
	}
	if seen != len(texts) {
		t.Fatalf("expected %d events, got %d", len(texts), seen)
	}
	if err := <-scanErr; err != nil {
		t.Fatalf("scan: %v", err)
	}
}

// #endregion quit-tests
