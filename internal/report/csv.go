package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region csv-sink

// CSVSink appends one row per scored text in the export format
// text,novelty,kl,fisher,tokens,is_alert. The header is written eagerly so a
// run that fails midway still leaves a parseable file.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer // nil when the sink does not own the writer
}

var csvHeader = []string{"text", "novelty", "kl", "fisher", "tokens", "is_alert"}

// NewCSVSink creates (truncates) the file at path and writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv %s: %w", path, err)
	}
	s, err := newCSVSink(f, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// NewCSVSinkWriter writes to w without taking ownership of it.
func NewCSVSinkWriter(w io.Writer) (*CSVSink, error) {
	return newCSVSink(w, nil)
}

func newCSVSink(w io.Writer, closer io.Closer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w), closer: closer}
	if err := s.w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return s, nil
}

// Emit appends one row. Floats use the shortest round-trip representation so
// the export reloads to bit-identical values.
func (s *CSVSink) Emit(_ int, res engine.Result) error {
	alert := "False"
	if res.Alert {
		alert = "True"
	}
	row := []string{
		res.Text,
		strconv.FormatFloat(res.Novelty, 'g', -1, 64),
		strconv.FormatFloat(res.KL, 'g', -1, 64),
		strconv.FormatFloat(res.Fisher, 'g', -1, 64),
		strconv.Itoa(res.TokenCount),
		alert,
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and, when the sink owns the underlying file, closes it.
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// #endregion csv-sink
