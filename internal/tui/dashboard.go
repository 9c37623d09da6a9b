package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/report"
)

// #region messages

type resultMsg report.Event

type streamDoneMsg struct{}

// #endregion messages

// #region model

const historyLen = 48

// Model is the live scan dashboard: three score panels and an alert tail,
// fed by a report channel sink. The scan itself runs in another goroutine;
// the dashboard only consumes its event stream.
type Model struct {
	events    <-chan report.Event
	threshold float64

	novelty []float64
	kl      []float64
	fisher  []float64
	alerts  []string
	steps   int
	nAlerts int
	done    bool
}

// New creates a dashboard over an event stream.
func New(events <-chan report.Event, threshold float64) Model {
	return Model{events: events, threshold: threshold}
}

// Run drives the dashboard until the stream closes or the user quits.
func Run(events <-chan report.Event, threshold float64) error {
	_, err := tea.NewProgram(New(events, threshold)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return waitForResult(m.events)
}

// waitForResult blocks on the next scan event.
func waitForResult(events <-chan report.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamDoneMsg{}
		}
		return resultMsg(ev)
	}
}

// #endregion model

// #region update

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		switch v.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		if v.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case resultMsg:
		res := v.Result
		m.novelty = push(m.novelty, res.Novelty)
		m.kl = push(m.kl, res.KL)
		m.fisher = push(m.fisher, res.Fisher)
		m.steps++
		if res.Alert {
			m.nAlerts++
			line := fmt.Sprintf("step %d  %.4f  %s", v.Step+1, res.Novelty, clip(res.Text, 40))
			m.alerts = append(m.alerts, line)
			if len(m.alerts) > 5 {
				m.alerts = m.alerts[len(m.alerts)-5:]
			}
		}
		return m, waitForResult(m.events)

	case streamDoneMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

// push appends v, keeping the last historyLen points.
func push(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historyLen {
		history = history[len(history)-historyLen:]
	}
	return history
}

func clip(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// #endregion update

// #region view

var sparkLevels = []rune(" ▁▂▃▄▅▆▇█")

func (m Model) View() string {
	var b strings.Builder

	status := "scanning"
	if m.done {
		status = "stream ended, q to exit"
	}
	fmt.Fprintf(&b, "NOVELTY SCAN  |  %d texts, %d alerts  |  %s\n\n", m.steps, m.nAlerts, status)

	fmt.Fprintf(&b, "novelty  (threshold %.2f, ! marks alerts)\n", m.threshold)
	b.WriteString(sparkline(m.novelty, m.threshold))
	b.WriteString("\n\nkl divergence\n")
	b.WriteString(sparkline(m.kl, -1))
	b.WriteString("\n\nfisher trace\n")
	b.WriteString(sparkline(m.fisher, -1))

	b.WriteString("\n\nrecent alerts\n")
	if len(m.alerts) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, a := range m.alerts {
		fmt.Fprintf(&b, "  ! %s\n", a)
	}
	b.WriteString("\nq / esc / ctrl+c to quit\n")
	return b.String()
}

// sparkline renders values as a bar strip scaled to the window maximum.
// Values strictly above threshold render as '!'; a negative threshold
// disables marking.
func sparkline(values []float64, threshold float64) string {
	if len(values) == 0 {
		return "  (waiting)"
	}
	max := values[0]
	for _, v := range values {
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	b.WriteString("  ")
	for _, v := range values {
		if threshold >= 0 && v > threshold {
			b.WriteRune('!')
			continue
		}
		level := 0
		if max > 0 {
			level = int(v / max * float64(len(sparkLevels)-1))
		}
		if level < 0 {
			level = 0
		}
		if level >= len(sparkLevels) {
			level = len(sparkLevels) - 1
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

// #endregion view
