// Package core assembles the FrameBench engine.
//
// The Engine builds every component from configuration (source, sink,
// sampler, session controller, stats server, MQTT emitter, timeline
// writer), runs one playback session to completion, and tears the stack
// down in order. It is the only package that knows how the pieces fit
// together; everything below it is wired through small interfaces.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/framebench/internal/config"
	"github.com/visiona/framebench/internal/emitter"
	"github.com/visiona/framebench/internal/export"
	"github.com/visiona/framebench/internal/metrics"
	"github.com/visiona/framebench/internal/pacer"
	"github.com/visiona/framebench/internal/sampler"
	"github.com/visiona/framebench/internal/session"
	"github.com/visiona/framebench/internal/sink"
	"github.com/visiona/framebench/internal/source"
	"github.com/visiona/framebench/internal/statserver"
	"github.com/visiona/framebench/internal/types"
)

// Engine is the main benchmark orchestrator
type Engine struct {
	cfg       *config.Config
	sessionID string
	cadence   types.TargetCadence
	path      string

	// Core components
	controller *session.Controller
	server     *statserver.Server
	emit       *emitter.MQTTEmitter
	timeline   *export.TimelineFile

	// Lifecycle management
	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	cancelCtx context.CancelFunc
}

// New creates an engine from configuration. The config is validated and
// defaulted here, so flag-assembled configs can be passed directly.
func New(cfg *config.Config) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	cadence, err := types.CadenceFromFPS(cfg.Video.TargetFPS)
	if err != nil {
		return nil, fmt.Errorf("invalid target fps: %w", err)
	}

	src, path, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	snk, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}

	var smp sampler.Sampler
	if !cfg.Sampler.Disabled {
		ps, err := sampler.NewProcessSampler()
		if err != nil {
			return nil, fmt.Errorf("failed to create resource sampler: %w", err)
		}
		smp = ps
	}

	ctrl, err := session.New(session.Config{
		SessionID:      sessionID,
		Source:         src,
		Sink:           snk,
		Sampler:        smp,
		SampleInterval: time.Duration(cfg.Sampler.IntervalMS) * time.Millisecond,
		DropSlack:      cfg.Pacer.DropSlack,
		FPSWindow:      cfg.Metrics.FPSWindow,
		ResourceWindow: cfg.Metrics.ResourceWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		sessionID:  sessionID,
		cadence:    cadence,
		path:       path,
		controller: ctrl,
	}

	ctrl.AddObserver(newProgressObserver(progressEvery))

	if cfg.Export.TimelinePath != "" {
		tl, err := export.CreateTimelineFile(cfg.Export.TimelinePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create timeline file: %w", err)
		}
		e.timeline = tl
		ctrl.AddObserver(&timelineObserver{file: tl})
		slog.Info("timeline recording enabled", "path", cfg.Export.TimelinePath)
	}

	if cfg.Server.Enabled {
		srv, err := statserver.New(statserver.Config{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Stats:        ctrl.LiveSnapshot,
			Ready:        func() bool { return ctrl.State() == pacer.StateRunning },
			State:        func() string { return ctrl.State().String() },
			PushInterval: time.Duration(cfg.Server.SnapshotIntervalMS) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stats server: %w", err)
		}
		e.server = srv
		ctrl.AddObserver(srv.Collector())
	}

	if cfg.MQTT.Enabled {
		e.emit = emitter.NewMQTTEmitter(emitter.Config{
			Broker:      fmt.Sprintf("%s:%d", cfg.MQTT.BrokerHost, cfg.MQTT.BrokerPort),
			ClientID:    fmt.Sprintf("framebench-%s", sessionID),
			TopicPrefix: cfg.MQTT.TopicPrefix,
			SessionID:   sessionID,
		})
	}

	return e, nil
}

// buildSource selects the frame source: a synthetic generator in benchmark
// mode, a GStreamer decode pipeline otherwise
func buildSource(cfg *config.Config) (source.FrameSource, string, error) {
	if cfg.Video.Benchmark.Enabled {
		width, height := cfg.BenchmarkDimensions()
		src, err := source.NewSynthetic(source.SyntheticConfig{
			Width:     width,
			Height:    height,
			Frames:    cfg.Video.Benchmark.Frames,
			FrameCost: time.Duration(cfg.Video.Benchmark.FrameCostMS * float64(time.Millisecond)),
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create synthetic source: %w", err)
		}

		slog.Info("benchmark mode enabled",
			"frames", cfg.Video.Benchmark.Frames,
			"resolution", cfg.Video.Benchmark.Resolution,
			"frame_cost_ms", cfg.Video.Benchmark.FrameCostMS,
		)
		return src, "benchmark", nil
	}

	return source.NewGstSource(), cfg.Video.Path, nil
}

// buildSink selects the presentation sink from configuration
func buildSink(cfg *config.Config) (sink.FrameSink, error) {
	switch cfg.Sink.Mode {
	case "file":
		fs, err := sink.NewFileSink(sink.FileConfig{
			OutputDir:   cfg.Sink.OutputDir,
			Format:      cfg.Sink.Format,
			JPEGQuality: cfg.Sink.JPEGQuality,
			Every:       uint64(cfg.Sink.SaveEveryN),
			QueueDepth:  cfg.Sink.QueueSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create file sink: %w", err)
		}

		slog.Info("file sink enabled",
			"dir", cfg.Sink.OutputDir,
			"every", cfg.Sink.SaveEveryN,
			"format", cfg.Sink.Format,
		)
		return fs, nil
	default:
		return sink.NewNullSink(sink.NullConfig{}), nil
	}
}

// SessionID returns the identifier of the session this engine runs
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Run starts every component and blocks until playback ends, whether by
// end of stream, decode error, or context cancellation. Call Shutdown
// afterwards to flush exports and release the reporting surfaces.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine is already running")
	}
	e.isRunning = true
	e.started = time.Now()
	e.mu.Unlock()

	// Cancellable context so Shutdown can stop the publish loop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancelCtx = cancel
	e.mu.Unlock()

	slog.Info("framebench starting",
		"session_id", e.sessionID,
		"input", e.path,
		"cadence", e.cadence.String(),
	)

	// Stats server first so probes answer while the source opens
	if e.server != nil {
		if err := e.server.Start(); err != nil {
			return fmt.Errorf("failed to start stats server: %w", err)
		}
	}

	if e.emit != nil {
		if err := e.emit.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect mqtt: %w", err)
		}
		e.wg.Add(1)
		go e.publishLoop(ctx)
	}

	if err := e.controller.Start(ctx, e.path, e.cadence); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// The controller watches ctx itself, so cancellation ends playback
	// and closes Done
	<-e.controller.Done()

	if err := e.controller.Err(); err != nil {
		slog.Error("playback ended with error", "error", err)
		return err
	}

	slog.Info("playback complete")
	return nil
}

// publishLoop pushes live snapshots to the MQTT broker until ctx ends
func (e *Engine) publishLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := time.Duration(e.cfg.MQTT.IntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := e.controller.LiveSnapshot()
			if err != nil {
				continue
			}
			if err := e.emit.PublishStats(stats); err != nil {
				slog.Debug("stats publish failed", "error", err)
			}
		}
	}
}

// Shutdown performs graceful shutdown of all components
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	slog.Info("shutting down framebench")

	// Shutdown sequence (order is important!):
	// 1. End the session: pacer, sampler, sink, and source stop and the
	//    statistics freeze
	stats, err := e.controller.Stop()
	if err != nil {
		slog.Error("failed to stop session", "error", err)
	}

	// 2. Stop the publish loop before disconnecting anything it uses
	e.mu.Lock()
	if e.cancelCtx != nil {
		e.cancelCtx()
	}
	e.mu.Unlock()
	e.wg.Wait()

	// 3. Close the timeline file (the pacer has exited, no more records)
	if e.timeline != nil {
		if terr := e.timeline.Close(); terr != nil {
			slog.Error("failed to close timeline", "error", terr)
		}
	}

	// 4. Write the summary report
	if e.cfg.Export.JSONPath != "" && err == nil {
		if werr := e.controller.Export(e.cfg.Export.JSONPath); werr != nil {
			slog.Error("failed to write report", "error", werr, "path", e.cfg.Export.JSONPath)
		} else {
			slog.Info("report written", "path", e.cfg.Export.JSONPath)
		}
	}

	// 5. Publish the terminal snapshot and disconnect MQTT
	if e.emit != nil {
		if err == nil {
			if perr := e.emit.PublishFinal(stats); perr != nil {
				slog.Error("failed to publish final stats", "error", perr)
			}
		}
		if derr := e.emit.Disconnect(); derr != nil {
			slog.Error("failed to disconnect mqtt", "error", derr)
		}
	}

	// 6. Stop the stats server
	if e.server != nil {
		if serr := e.server.Shutdown(ctx); serr != nil {
			slog.Error("failed to stop stats server", "error", serr)
		}
	}

	e.mu.Lock()
	uptime := time.Since(e.started)
	e.isRunning = false
	e.mu.Unlock()

	slog.Info("framebench shutdown complete", "uptime", uptime)

	return nil
}

// FinalStats returns the frozen terminal statistics, ending the session
// first if it is still running. Idempotent, so it is safe both before
// and after Shutdown.
func (e *Engine) FinalStats() (metrics.SessionStats, error) {
	return e.controller.Stop()
}

// ShutdownTimeout returns the configured graceful shutdown budget
func (e *Engine) ShutdownTimeout() time.Duration {
	return time.Duration(e.cfg.ShutdownTimeoutS) * time.Second
}
