// Package sink delivers paced frames to their destination.
//
// A sink is the terminal stage of the playback loop. The pacer times the
// Deliver call to measure presentation cost, so implementations must do
// their synchronous work inside Deliver and push anything slow behind a
// queue.
//
// # Delivery Results
//
// Deliver reports whether the sink took the frame:
//
//   - Accepted: the frame was presented (or queued for persistence)
//   - Rejected: the sink could not take the frame, the pacer records a drop
//
// A Rejected result never stops playback. It feeds the drop accounting and
// the loop moves on to the next frame.
package sink

import "github.com/visiona/framebench/internal/types"

// Result reports the outcome of a single delivery
type Result int

const (
	// Accepted means the sink took the frame
	Accepted Result = iota
	// Rejected means the sink refused the frame and it counts as dropped
	Rejected
)

// String returns a human-readable result name
func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// FrameSink consumes frames produced by the playback loop.
//
// Deliver must be safe for repeated calls from a single goroutine. Close
// releases sink resources and flushes any pending work; it must be safe to
// call after playback ends.
type FrameSink interface {
	Deliver(frame *types.Frame) Result
	Close() error
}
