// Package pacer runs the frame playback loop at a target cadence.
//
// The pacer pulls frames from a source, delivers them to a sink, and
// classifies every attempt as delivered or dropped. It owns the timing
// policy:
//
//   - Fixed cadence: each iteration gets one interval of budget. When
//     decode plus delivery exceed the budget the frame is recorded as
//     dropped (deadline_missed), and any remaining time is slept away so
//     the loop holds the target rate.
//   - Unbounded cadence: the loop runs as fast as the source decodes and
//     never drops on timing.
//
// A sink rejection is a drop under either cadence (sink_rejected). The
// loop never skips source frames to catch up after a miss; every frame is
// decoded, delivered, and accounted.
//
// # Lifecycle
//
// Idle → Running → Stopping → Stopped. Run executes the loop on the
// calling goroutine and returns on end of stream, decode error, or stop
// request. Stop is cooperative: it raises a flag the loop checks at the
// top of each iteration and interrupts any in-progress pacing sleep. Stop
// is safe to call at any time, from any goroutine, more than once.
package pacer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visiona/framebench/internal/sink"
	"github.com/visiona/framebench/internal/source"
	"github.com/visiona/framebench/internal/types"
)

// ErrAlreadyStarted is returned by Run when the pacer has run before
var ErrAlreadyStarted = errors.New("pacer already started")

// State identifies a point in the pacer lifecycle
type State int32

const (
	// StateIdle means Run has not been called
	StateIdle State = iota
	// StateRunning means the loop is processing frames
	StateRunning
	// StateStopping means a stop was requested and the loop is winding down
	StateStopping
	// StateStopped means the loop has exited
	StateStopped
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config assembles a pacer
type Config struct {
	// Source supplies decoded frames
	Source source.FrameSource
	// Sink receives paced frames
	Sink sink.FrameSink
	// Cadence is the target delivery rate
	Cadence types.TargetCadence
	// DropSlack scales the per-frame deadline budget (>= 1.0, default 1.0).
	// A frame is only dropped when decode+delivery exceed interval*slack.
	DropSlack float64
	// OnEvent observes every frame attempt (may be nil)
	OnEvent func(types.FrameEvent)
}

// Pacer drives the playback loop
type Pacer struct {
	source  source.FrameSource
	sink    sink.FrameSink
	cadence types.TargetCadence
	slack   float64
	onEvent func(types.FrameEvent)

	state    atomic.Int32
	stopping atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a pacer. Source and sink are required.
func New(cfg Config) (*Pacer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("pacer: source is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("pacer: sink is required")
	}
	if cfg.DropSlack == 0 {
		cfg.DropSlack = 1.0
	}
	if cfg.DropSlack < 1.0 {
		return nil, fmt.Errorf("pacer: drop slack %.2f must be >= 1.0", cfg.DropSlack)
	}

	return &Pacer{
		source:  cfg.Source,
		sink:    cfg.Sink,
		cadence: cfg.Cadence,
		slack:   cfg.DropSlack,
		onEvent: cfg.OnEvent,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Run executes the playback loop on the calling goroutine.
//
// It returns nil on end of stream or stop request, and the decode error
// when the source fails mid-stream. A pacer runs once; subsequent calls
// return ErrAlreadyStarted.
func (p *Pacer) Run() error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer func() {
		p.state.Store(int32(StateStopped))
		close(p.done)
	}()

	slog.Info("pacer started",
		"cadence", p.cadence.String(),
		"drop_slack", p.slack,
	)

	for {
		if p.stopping.Load() {
			slog.Info("pacer stop requested")
			return nil
		}

		iterStart := time.Now()

		frame, err := p.source.NextFrame()
		if err != nil {
			return p.classifySourceFailure(err)
		}
		decodeDur := time.Since(iterStart)

		deliverStart := time.Now()
		result := p.sink.Deliver(frame)
		deliveryDur := time.Since(deliverStart)

		outcome := types.OutcomeDelivered
		reason := types.DropNone
		switch {
		case result == sink.Rejected:
			outcome = types.OutcomeDropped
			reason = types.DropSinkRejected
		case p.deadlineMissed(decodeDur + deliveryDur):
			outcome = types.OutcomeDropped
			reason = types.DropDeadlineMissed
		}

		if p.onEvent != nil {
			p.onEvent(types.FrameEvent{
				Seq:                  frame.Seq,
				Timestamp:            time.Now(),
				DecodeDuration:       decodeDur,
				PresentationDuration: deliveryDur,
				Outcome:              outcome,
				Reason:               reason,
			})
		}

		p.pause(iterStart)
	}
}

// Stop requests a cooperative shutdown. The loop exits at the top of the
// next iteration, or immediately if it is sleeping between frames.
func (p *Pacer) Stop() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		p.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		close(p.stopCh)
	})
}

// Done returns a channel closed when the loop has exited
func (p *Pacer) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle state
func (p *Pacer) State() State {
	return State(p.state.Load())
}

// deadlineMissed reports whether a frame blew its per-interval budget
func (p *Pacer) deadlineMissed(elapsed time.Duration) bool {
	if p.cadence.IsUnbounded() {
		return false
	}
	budget := time.Duration(float64(p.cadence.Interval()) * p.slack)
	return elapsed > budget
}

// pause sleeps out the remainder of the current interval, measured from
// the start of the iteration. Oversized iterations get no sleep and the
// loop proceeds immediately; there is no catch-up skipping.
func (p *Pacer) pause(iterStart time.Time) {
	if p.cadence.IsUnbounded() {
		return
	}
	remainder := p.cadence.Interval() - time.Since(iterStart)
	if remainder <= 0 {
		return
	}
	select {
	case <-time.After(remainder):
	case <-p.stopCh:
	}
}

// classifySourceFailure maps source errors to loop outcomes. End of
// stream is a clean exit; decode errors propagate to the caller.
func (p *Pacer) classifySourceFailure(err error) error {
	if errors.Is(err, source.ErrEndOfStream) {
		slog.Info("pacer reached end of stream")
		return nil
	}

	var decodeErr *source.DecodeError
	if errors.As(err, &decodeErr) {
		slog.Error("pacer stopping on decode error",
			"seq", decodeErr.Seq,
			"error", decodeErr.Err,
		)
		return err
	}

	slog.Error("pacer stopping on source failure", "error", err)
	return fmt.Errorf("source failed: %w", err)
}
