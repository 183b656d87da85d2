// Package statserver exposes live benchmark state over HTTP.
//
// Endpoints:
//
//   - /health     liveness probe
//   - /readiness  readiness probe (503 until playback is running)
//   - /stats      current session statistics as JSON
//   - /metrics    Prometheus exposition
//   - /ws         websocket stream of stats pushes
//
// The server never touches the aggregator directly: it reads through a
// stats provider closure and its Prometheus collector observes the
// session fan-out, so a slow scrape or subscriber cannot stall the
// playback loop.
package statserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visiona/framebench/internal/metrics"
)

// Config assembles a stats server
type Config struct {
	// Addr is the listen address (default ":9090")
	Addr string
	// Stats supplies the current session statistics (required)
	Stats func() (metrics.SessionStats, error)
	// Ready reports whether playback is running (nil means always ready)
	Ready func() bool
	// State names the session lifecycle state for probe payloads
	State func() string
	// Collector receives frame and resource observations (created when nil)
	Collector *Collector
	// PushInterval is the websocket push cadence (default 1s)
	PushInterval time.Duration
}

// Server is the HTTP surface for live stats
type Server struct {
	cfg          Config
	collector    *Collector
	hub          *hub
	httpServer   *http.Server
	listener     net.Listener
	pushInterval time.Duration
	started      time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// liveStats is the JSON shape served on /stats and pushed over /ws
type liveStats struct {
	SessionID       string    `json:"session_id"`
	State           string    `json:"state"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`

	TotalFrames     uint64 `json:"total_frames"`
	DeliveredFrames uint64 `json:"delivered_frames"`
	DroppedFrames   uint64 `json:"dropped_frames"`

	CurrentFPS float64 `json:"current_fps"`
	AverageFPS float64 `json:"average_fps"`
	MaxFPS     float64 `json:"max_fps"`
	MinFPS     float64 `json:"min_fps"`

	MemoryMB       float64 `json:"memory_mb"`
	PeakMemoryMB   float64 `json:"peak_memory_mb"`
	CPUPercent     float64 `json:"cpu_percent"`
	PeakCPUPercent float64 `json:"peak_cpu_percent"`
}

// New creates a stats server. The stats provider is required.
func New(cfg Config) (*Server, error) {
	if cfg.Stats == nil {
		return nil, fmt.Errorf("statserver: stats provider is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9090"
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = time.Second
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	if cfg.State == nil {
		cfg.State = func() string { return "unknown" }
	}

	collector := cfg.Collector
	if collector == nil {
		collector = NewCollector()
	}

	s := &Server{
		cfg:          cfg,
		collector:    collector,
		hub:          newHub(),
		pushInterval: cfg.PushInterval,
		stopCh:       make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/readiness", s.handleReadiness)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", s.hub.handleWS)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Collector returns the Prometheus collector backing /metrics
func (s *Server) Collector() *Collector {
	return s.collector
}

// Addr returns the bound listen address, useful with ":0"
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind stats server: %w", err)
	}
	s.listener = ln
	s.started = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("stats server failed", "error", err)
		}
	}()

	s.wg.Add(1)
	go s.pushLoop()

	slog.Info("stats server listening",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/health", "/readiness", "/stats", "/metrics", "/ws"},
	)
	return nil
}

// Shutdown disconnects subscribers and stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.hub.closeAll()
		err = s.httpServer.Shutdown(ctx)
		s.wg.Wait()
	})
	return err
}

// pushLoop broadcasts stats to websocket subscribers on the push cadence
func (s *Server) pushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.hub.clientCount() == 0 {
				continue
			}
			stats, err := s.cfg.Stats()
			if err != nil {
				continue
			}
			payload, err := json.Marshal(s.liveView(stats))
			if err != nil {
				slog.Warn("failed to marshal stats push", "error", err)
				continue
			}
			s.hub.broadcast(payload)
		}
	}
}

// liveView projects a stats snapshot into the wire shape
func (s *Server) liveView(st metrics.SessionStats) liveStats {
	return liveStats{
		SessionID:       st.SessionID,
		State:           s.cfg.State(),
		Timestamp:       time.Now().UTC(),
		DurationSeconds: st.Duration.Seconds(),

		TotalFrames:     st.TotalFrames,
		DeliveredFrames: st.DeliveredFrames,
		DroppedFrames:   st.DroppedFrames,

		CurrentFPS: st.CurrentFPS,
		AverageFPS: st.AverageFPS,
		MaxFPS:     st.MaxFPS,
		MinFPS:     st.MinFPS,

		MemoryMB:       metrics.BytesToMB(float64(st.CurrentMemoryBytes)),
		PeakMemoryMB:   metrics.BytesToMB(float64(st.PeakMemoryBytes)),
		CPUPercent:     st.CurrentCPUPercent,
		PeakCPUPercent: st.PeakCPUPercent,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ready"
	statusCode := http.StatusOK
	if !s.cfg.Ready() {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"state":  s.cfg.State(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	stats, err := s.cfg.Stats()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.liveView(stats))
}
