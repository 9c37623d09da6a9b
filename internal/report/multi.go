package report

import (
	"errors"

	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region multi-sink

// MultiSink fans one result stream out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink bundles sinks; nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Emit delivers to every sink, stopping at the first failure.
func (m *MultiSink) Emit(step int, res engine.Result) error {
	for _, s := range m.sinks {
		if err := s.Emit(step, res); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, returning the joined errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// #endregion multi-sink
