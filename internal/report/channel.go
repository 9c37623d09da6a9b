package report

import (
	"github.com/ericrenone/FPGA-Novelty-Detection-Accelerator/go-engine/internal/engine"
)

// #region channel-sink

// Event is one scored text as delivered to a channel consumer.
type Event struct {
	Step   int
	Result engine.Result
}

// ChannelSink forwards results to a channel, feeding live consumers such as
// the dashboard. Emit blocks when the channel is full, which back-pressures
// the scan to the consumer's pace.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Emit delivers one event.
func (s *ChannelSink) Emit(step int, res engine.Result) error {
	s.ch <- Event{Step: step, Result: res}
	return nil
}

// Close closes the channel; consumers see the end of the stream.
func (s *ChannelSink) Close() error {
	close(s.ch)
	return nil
}

// #endregion channel-sink
