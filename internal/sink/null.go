package sink

import (
	"sync/atomic"
	"time"

	"github.com/visiona/framebench/internal/types"
)

// NullSink accepts frames without presenting them anywhere.
//
// It is the default sink for benchmarking runs where the cost under test
// is decode and pacing, not display. An optional fixed latency simulates
// presentation cost, and an optional rejection cadence injects sink
// failures for drop-path testing.
type NullSink struct {
	latency     time.Duration
	rejectEvery uint64
	delivered   atomic.Uint64
	rejected    atomic.Uint64
}

// NullConfig tunes the null sink
type NullConfig struct {
	// Latency is slept on every delivery to simulate presentation cost
	Latency time.Duration
	// RejectEvery rejects every Nth frame (0 disables injection)
	RejectEvery uint64
}

// NewNullSink creates a sink that swallows frames
func NewNullSink(cfg NullConfig) *NullSink {
	return &NullSink{
		latency:     cfg.Latency,
		rejectEvery: cfg.RejectEvery,
	}
}

// Deliver implements FrameSink
func (n *NullSink) Deliver(frame *types.Frame) Result {
	if n.latency > 0 {
		time.Sleep(n.latency)
	}
	if n.rejectEvery > 0 && frame.Seq%n.rejectEvery == 0 {
		n.rejected.Add(1)
		return Rejected
	}
	n.delivered.Add(1)
	return Accepted
}

// Close implements FrameSink
func (n *NullSink) Close() error {
	return nil
}

// Stats returns delivery counters
func (n *NullSink) Stats() (delivered, rejected uint64) {
	return n.delivered.Load(), n.rejected.Load()
}
