package report

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region console-sink

// ConsoleSink prints the per-text scan line. Alert lines are highlighted when
// the writer is an interactive terminal.
type ConsoleSink struct {
	w     io.Writer
	color bool
}

// NewConsoleSink writes to stdout, with color when stdout is a TTY.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{
		w:     os.Stdout,
		color: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// NewConsoleSinkWriter writes plain lines to w (tests, piped output).
func NewConsoleSinkWriter(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Emit prints one scan line: truncated text, score, and the alert flag.
// Steps are 1-based on screen; persistence keeps the 0-based step.
func (s *ConsoleSink) Emit(step int, res engine.Result) error {
	flag := "[.] Normal"
	if res.Alert {
		flag = "[!] NOVELTY ALERT"
		if s.color {
			flag = "\x1b[31m" + flag + "\x1b[0m"
		}
	}
	_, err := fmt.Fprintf(s.w, "Step %d: %s... | Score: %.4f %s\n",
		step+1, truncate(res.Text, 30), res.Novelty, flag)
	if err != nil {
		return fmt.Errorf("console emit: %w", err)
	}
	return nil
}

// Close is a no-op; the sink does not own its writer.
func (s *ConsoleSink) Close() error { return nil }

// truncate cuts text to at most n runes.
func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// #endregion console-sink
