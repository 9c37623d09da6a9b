package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/logging"
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to scan database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/scans.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(st, *runID, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type runRow struct {
	RunID      string `json:"run_id"`
	ModelID    string `json:"model_id"`
	Texts      int    `json:"texts"`
	Alerts     int    `json:"alerts"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]runRow, len(runs))
	for i, r := range runs {
		rows[i] = runRow{
			RunID:     r.RunID,
			ModelID:   r.ModelID,
			Texts:     r.TextsSeen,
			Alerts:    r.AlertsRaised,
			StartedAt: r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
		if !r.FinishedAt.IsZero() {
			rows[i].FinishedAt = r.FinishedAt.Format("2006-01-02T15:04:05Z")
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-18s  %6s  %6s  %-20s  %s\n",
		"Run", "Model", "Texts", "Alerts", "Started", "Finished")
	fmt.Printf("%-12s+-%-18s+-%6s+-%6s+-%-20s+-%s\n",
		"------------", "------------------", "------", "------", "--------------------", "--------------------")
	for _, r := range rows {
		finished := r.FinishedAt
		if finished == "" {
			finished = "(open)"
		}
		fmt.Printf("%-12s  %-18s  %6d  %6d  %-20s  %s\n",
			shortID(r.RunID), r.ModelID, r.Texts, r.Alerts, r.StartedAt, finished)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type evalRow struct {
	Step    int     `json:"step"`
	Text    string  `json:"text"`
	Novelty float64 `json:"novelty"`
	KL      float64 `json:"kl"`
	Fisher  float64 `json:"fisher"`
	Tokens  int     `json:"tokens"`
	IsAlert bool    `json:"is_alert"`
}

type detailOutput struct {
	RunID      string          `json:"run_id"`
	ModelID    string          `json:"model_id"`
	ConfigJSON json.RawMessage `json:"config"`
	Texts      int             `json:"texts"`
	Alerts     int             `json:"alerts"`
	Evals      []evalRow       `json:"evaluations"`
	AlertLog   []alertRow      `json:"alert_log"`
}

type alertRow struct {
	EvalID    string  `json:"eval_id"`
	Novelty   float64 `json:"novelty"`
	Threshold float64 `json:"threshold"`
	Margin    float64 `json:"margin"`
}

func runDetailMode(st *store.Store, runID string, jsonOut bool) error {
	run, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	evals, err := st.ListEvaluations(runID)
	if err != nil {
		return err
	}
	alerts, err := logging.ListAlerts(st.DB(), runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:      run.RunID,
		ModelID:    run.ModelID,
		ConfigJSON: json.RawMessage(run.ConfigJSON),
		Texts:      run.TextsSeen,
		Alerts:     run.AlertsRaised,
	}
	for _, e := range evals {
		out.Evals = append(out.Evals, evalRow{
			Step: e.Step, Text: e.Text, Novelty: e.Novelty,
			KL: e.KL, Fisher: e.Fisher, Tokens: e.TokenCount, IsAlert: e.Alert,
		})
	}
	for _, a := range alerts {
		out.AlertLog = append(out.AlertLog, alertRow{
			EvalID: a.EvalID, Novelty: a.Novelty, Threshold: a.Threshold, Margin: a.Margin,
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:     %s\n", run.RunID)
	fmt.Printf("Model:   %s\n", run.ModelID)
	fmt.Printf("Texts:   %d\n", run.TextsSeen)
	fmt.Printf("Alerts:  %d\n", run.AlertsRaised)

	fmt.Printf("\n%4s  %8s  %8s  %10s  %6s  %-6s  %s\n",
		"Step", "Novelty", "KL", "Fisher", "Tokens", "Alert", "Text")
	for _, e := range out.Evals {
		flag := "."
		if e.IsAlert {
			flag = "!"
		}
		fmt.Printf("%4d  %8.4f  %8.4f  %10.6f  %6d  %-6s  %s\n",
			e.Step, e.Novelty, e.KL, e.Fisher, e.Tokens, flag, clip(e.Text, 40))
	}

	if len(out.AlertLog) > 0 {
		fmt.Printf("\nAlert log:\n")
		for _, a := range out.AlertLog {
			fmt.Printf("  %s  novelty=%.4f threshold=%.4f margin=%.4f\n",
				shortID(a.EvalID), a.Novelty, a.Threshold, a.Margin)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// #endregion output
