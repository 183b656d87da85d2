// Package session owns the lifecycle of one benchmark run.
//
// The Controller wires a frame source, a sink, the pacer, the resource
// sampler, and the metrics aggregator into a single start/stop surface.
// A controller is one-shot: Start begins playback, Stop tears everything
// down in order and freezes the terminal statistics. Observers registered
// before Start see every frame record and resource sample as they happen,
// which is how live reporting surfaces (stats server, timeline writer,
// MQTT) attach without touching the hot path's locking.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/framebench/internal/export"
	"github.com/visiona/framebench/internal/metrics"
	"github.com/visiona/framebench/internal/pacer"
	"github.com/visiona/framebench/internal/sampler"
	"github.com/visiona/framebench/internal/sink"
	"github.com/visiona/framebench/internal/source"
	"github.com/visiona/framebench/internal/types"
)

// Observer sees session activity as it happens. Callbacks run on the
// pacer and sampler goroutines and must be fast; slow consumers queue or
// drop on their own side.
type Observer interface {
	ObserveFrame(ev types.FrameEvent, rec metrics.FrameRecord)
	ObserveResource(s types.ResourceSample)
}

// Config assembles a session controller
type Config struct {
	// SessionID identifies the session (generated when empty)
	SessionID string
	// Source supplies decoded frames (required)
	Source source.FrameSource
	// Sink receives paced frames (required)
	Sink sink.FrameSink
	// Sampler polls process resources (nil disables resource monitoring)
	Sampler sampler.Sampler
	// SampleInterval is the resource polling period (default 500ms)
	SampleInterval time.Duration
	// DropSlack scales the pacer deadline budget (default 1.0)
	DropSlack float64
	// FPSWindow is the rolling FPS window capacity (default 30)
	FPSWindow int
	// ResourceWindow is the rolling memory/CPU window capacity (default 60)
	ResourceWindow int
}

// Controller runs one playback session
type Controller struct {
	sessionID      string
	src            source.FrameSource
	snk            sink.FrameSink
	smp            sampler.Sampler
	sampleInterval time.Duration
	dropSlack      float64
	fpsWindow      int
	resourceWindow int

	observers []Observer
	// obsList is the frozen observer set, copied at Start. The pacer and
	// sampler goroutines read it without locking; the goroutine launch
	// provides the ordering.
	obsList []Observer

	mu       sync.Mutex
	started  bool
	agg      *metrics.Aggregator
	pcr      *pacer.Pacer
	meta     types.VideoMetadata
	runErr   error
	terminal *metrics.SessionStats

	playbackDone chan struct{}
	samplerStop  chan struct{}
	samplerDone  chan struct{}
	stopOnce     sync.Once
}

// New creates a controller. Source and sink are required.
func New(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("session: source is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("session: sink is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 500 * time.Millisecond
	}
	if cfg.DropSlack == 0 {
		cfg.DropSlack = 1.0
	}
	if cfg.FPSWindow <= 0 {
		cfg.FPSWindow = 30
	}
	if cfg.ResourceWindow <= 0 {
		cfg.ResourceWindow = 60
	}

	return &Controller{
		sessionID:      cfg.SessionID,
		src:            cfg.Source,
		snk:            cfg.Sink,
		smp:            cfg.Sampler,
		sampleInterval: cfg.SampleInterval,
		dropSlack:      cfg.DropSlack,
		fpsWindow:      cfg.FPSWindow,
		resourceWindow: cfg.ResourceWindow,
		playbackDone:   make(chan struct{}),
		samplerStop:    make(chan struct{}),
		samplerDone:    make(chan struct{}),
	}, nil
}

// AddObserver registers an activity observer. Must be called before Start.
func (c *Controller) AddObserver(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// SessionID returns the session identifier
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Metadata returns the video metadata probed at Start
func (c *Controller) Metadata() types.VideoMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// Start opens the source at path and begins paced playback toward the
// sink. Playback and resource sampling run on their own goroutines;
// Start returns once they are launched. Canceling ctx halts playback
// cooperatively (like Stop, but without finalizing the session).
func (c *Controller) Start(ctx context.Context, path string, cadence types.TargetCadence) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	meta, err := c.src.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	c.meta = meta
	c.agg = metrics.New(c.sessionID, meta, c.fpsWindow, c.resourceWindow)

	p, err := pacer.New(pacer.Config{
		Source:    c.src,
		Sink:      c.snk,
		Cadence:   cadence,
		DropSlack: c.dropSlack,
		OnEvent:   c.handleFrameEvent,
	})
	if err != nil {
		return fmt.Errorf("failed to create pacer: %w", err)
	}
	c.pcr = p
	c.obsList = append([]Observer(nil), c.observers...)
	c.started = true

	slog.Info("session started",
		"session_id", c.sessionID,
		"path", path,
		"cadence", cadence.String(),
		"resolution", meta.Resolution(),
		"native_fps", meta.NativeFPS,
	)

	go func() {
		err := p.Run()
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
		close(c.playbackDone)
	}()

	if c.smp != nil {
		go c.sampleLoop()
	} else {
		close(c.samplerDone)
	}

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.Stop()
			case <-c.playbackDone:
			}
		}()
	}

	return nil
}

// Done returns a channel closed when playback has ended, whether by end
// of stream, decode error, or stop request
func (c *Controller) Done() <-chan struct{} {
	return c.playbackDone
}

// Err returns the playback error, if any. Meaningful once Done is closed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// LiveSnapshot returns current statistics without the per-frame timeline
func (c *Controller) LiveSnapshot() (metrics.SessionStats, error) {
	c.mu.Lock()
	agg := c.agg
	c.mu.Unlock()

	if agg == nil {
		return metrics.SessionStats{}, ErrNotStarted
	}
	return agg.Snapshot(), nil
}

// State reports the pacer lifecycle state
func (c *Controller) State() pacer.State {
	c.mu.Lock()
	p := c.pcr
	c.mu.Unlock()

	if p == nil {
		return pacer.StateIdle
	}
	return p.State()
}

// Export writes the terminal statistics as a JSON report at path. Only
// valid after Stop; before that the timeline is still growing and the
// report would be incomplete, so Export fails with ErrNotFinalized.
func (c *Controller) Export(path string) error {
	c.mu.Lock()
	terminal := c.terminal
	c.mu.Unlock()

	if terminal == nil {
		return ErrNotFinalized
	}
	return export.WriteJSON(path, *terminal)
}

// Stop ends the session: halts the pacer, stops resource sampling, closes
// the sink and source, and finalizes the statistics. Idempotent; repeated
// calls return the same terminal snapshot, timeline included.
func (c *Controller) Stop() (metrics.SessionStats, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return metrics.SessionStats{}, ErrNotStarted
	}
	c.mu.Unlock()

	c.stopOnce.Do(c.shutdown)

	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.terminal, nil
}

// shutdown runs the ordered teardown exactly once
func (c *Controller) shutdown() {
	// 1. Halt the playback loop and wait for it to exit
	c.pcr.Stop()
	<-c.playbackDone

	// 2. Stop resource sampling before the aggregator freezes
	close(c.samplerStop)
	<-c.samplerDone

	// 3. Flush and release the delivery side
	if err := c.snk.Close(); err != nil {
		slog.Warn("sink close failed", "error", err)
	}

	// 4. Release the decoder
	if err := c.src.Close(); err != nil {
		slog.Warn("source close failed", "error", err)
	}

	// 5. Freeze the statistics
	stats := c.agg.Finalize()

	c.mu.Lock()
	c.terminal = &stats
	c.mu.Unlock()

	slog.Info("session stopped",
		"session_id", c.sessionID,
		"duration", stats.Duration,
		"total_frames", stats.TotalFrames,
		"dropped_frames", stats.DroppedFrames,
		"average_fps", stats.AverageFPS,
	)
}

// handleFrameEvent feeds the aggregator and fans the enriched record out
// to observers. Runs on the pacer goroutine.
func (c *Controller) handleFrameEvent(ev types.FrameEvent) {
	rec := c.agg.RecordFrame(ev)
	for _, obs := range c.obsList {
		obs.ObserveFrame(ev, rec)
	}
}

// sampleLoop polls the resource sampler until shutdown. An immediate
// first sample means even very short sessions report resource usage.
func (c *Controller) sampleLoop() {
	defer close(c.samplerDone)

	c.takeSample()

	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.samplerStop:
			return
		case <-ticker.C:
			c.takeSample()
		}
	}
}

func (c *Controller) takeSample() {
	s, err := c.smp.Sample()
	if err != nil {
		slog.Warn("resource sample failed", "error", err)
		return
	}
	c.agg.RecordResourceSample(s)
	for _, obs := range c.obsList {
		obs.ObserveResource(s)
	}
}
