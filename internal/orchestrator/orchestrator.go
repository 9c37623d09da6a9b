package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/logging"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/meter"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/report"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/store"
)

// #endregion imports

// #region orchestrator-struct

// Orchestrator drives a streaming scan: one engine evaluation per input text,
// in input order, with each result handed to the wired collaborators as it is
// produced. A failed text aborts the run; results collected before it are
// returned intact. There are no retries.
type Orchestrator struct {
	engine     *engine.Engine
	sink       report.Sink
	store      *store.Store
	meter      *meter.Meter
	modelID    string
	configJSON string
}

// New creates an Orchestrator from its dependencies.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("orchestrator: nil engine")
	}
	return &Orchestrator{
		engine:     deps.Engine,
		sink:       deps.Sink,
		store:      deps.Store,
		meter:      deps.Meter,
		modelID:    deps.ModelID,
		configJSON: deps.ConfigJSON,
	}, nil
}

// #endregion orchestrator-struct

// #region run

// Run evaluates texts from the channel until it closes, the context is
// cancelled, or a text fails. Cancellation is observed between texts; an
// in-flight evaluation always completes.
func (o *Orchestrator) Run(ctx context.Context, texts <-chan string) (RunReport, error) {
	rep := RunReport{}

	if o.store != nil {
		configJSON := o.configJSON
		if configJSON == "" {
			data, err := json.Marshal(o.engine.Config())
			if err != nil {
				return rep, fmt.Errorf("marshal engine config: %w", err)
			}
			configJSON = string(data)
		}
		run, err := o.store.BeginRun(o.modelID, configJSON)
		if err != nil {
			return rep, fmt.Errorf("begin run: %w", err)
		}
		rep.RunID = run.RunID
		log.Printf("[ORCH] run %s started (model=%s)", run.RunID, o.modelID)
	}

	step := 0
	alerts := 0
	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case text, ok := <-texts:
			if !ok {
				break loop
			}
			res, sample, err := o.evaluateOne(rep.RunID, step, text)
			if o.meter != nil {
				rep.Samples = append(rep.Samples, sample)
			}
			if err != nil {
				runErr = fmt.Errorf("text %d: %w", step, err)
				break loop
			}
			rep.Results = append(rep.Results, res)
			if res.Alert {
				alerts++
			}
			step++
		}
	}

	rep.Summary = summarize(rep.Results)
	if o.meter != nil {
		rep.Energy = o.meter.Summarize(rep.Samples)
	}

	if o.store != nil {
		if err := o.store.FinishRun(rep.RunID, len(rep.Results), alerts); err != nil {
			log.Printf("[ORCH] finish run %s: %v", rep.RunID, err)
		} else {
			log.Printf("[ORCH] run %s finished: %d texts, %d alerts",
				rep.RunID, len(rep.Results), alerts)
		}
	}
	return rep, runErr
}

// RunSlice evaluates a fixed list of texts.
func (o *Orchestrator) RunSlice(ctx context.Context, texts []string) (RunReport, error) {
	ch := make(chan string, len(texts))
	for _, t := range texts {
		ch <- t
	}
	close(ch)
	return o.Run(ctx, ch)
}

// #endregion run

// #region evaluate-one

// evaluateOne scores a single text through the meter (when wired) and fans
// the result out to the sink, the store, and the alert log.
func (o *Orchestrator) evaluateOne(runID string, step int, text string) (engine.Result, meter.Sample, error) {
	var res engine.Result
	var sample meter.Sample
	var err error

	eval := func() error {
		res, err = o.engine.Evaluate(text)
		return err
	}
	if o.meter != nil {
		sample, err = o.meter.Measure(len(text)*8, eval)
	} else {
		err = eval()
	}
	if err != nil {
		return engine.Result{}, sample, fmt.Errorf("evaluate: %w", err)
	}

	if o.sink != nil {
		if err := o.sink.Emit(step, res); err != nil {
			return res, sample, fmt.Errorf("emit: %w", err)
		}
	}
	if o.store != nil {
		rec := store.EvaluationRecord{
			EvalID:      res.ID,
			RunID:       runID,
			Step:        step,
			Text:        res.Text,
			Novelty:     res.Novelty,
			KL:          res.KL,
			Fisher:      res.Fisher,
			TokenCount:  res.TokenCount,
			Alert:       res.Alert,
			EvaluatedAt: res.EvaluatedAt,
		}
		if err := o.store.InsertEvaluation(rec); err != nil {
			return res, sample, fmt.Errorf("persist: %w", err)
		}
		if res.Alert {
			if _, err := logging.LogAlert(o.store.DB(), logging.AlertEntry{
				RunID:     runID,
				EvalID:    res.ID,
				Novelty:   res.Novelty,
				Threshold: o.engine.Config().NoveltyThreshold,
			}); err != nil {
				return res, sample, fmt.Errorf("alert provenance: %w", err)
			}
		}
	}
	return res, sample, nil
}

// #endregion evaluate-one
