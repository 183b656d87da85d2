// Package emitter publishes session telemetry to an MQTT broker.
//
// Two topics are used under a configurable prefix:
//
//	<prefix>/<session_id>/stats  live snapshots, QoS 0 (lossy is fine)
//	<prefix>/<session_id>/final  terminal summary, QoS 1
//
// The emitter is passive: the engine owns the publish cadence and calls
// PublishStats / PublishFinal. Connection loss is handled by the paho
// auto-reconnect machinery; publishes while disconnected count as errors
// and are dropped.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/framebench/internal/export"
	"github.com/visiona/framebench/internal/metrics"
)

// Config assembles an MQTT emitter
type Config struct {
	// Broker is the host:port of the MQTT broker
	Broker string
	// ClientID identifies this process to the broker
	ClientID string
	// TopicPrefix is the first topic segment (default "framebench")
	TopicPrefix string
	// SessionID is the second topic segment
	SessionID string
}

// MQTTEmitter publishes session stats to an MQTT broker
type MQTTEmitter struct {
	cfg    Config
	Client mqtt.Client // Exported for health checks

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// statsPayload is the live snapshot wire shape
type statsPayload struct {
	SessionID       string    `json:"session_id"`
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

// NewMQTTEmitter creates an emitter for one session
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "framebench"
	}
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes the connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
			"auto_reconnect", "enabled")
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
			"max_retry_interval", "30s")
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	return nil
}

// PublishStats publishes a live snapshot at QoS 0
func (e *MQTTEmitter) PublishStats(stats metrics.SessionStats) error {
	payload, err := json.Marshal(statsPayload{
		SessionID:       stats.SessionID,
		Timestamp:       time.Now().UTC(),
		DurationSeconds: stats.Duration.Seconds(),

		TotalFrames:     stats.TotalFrames,
		DeliveredFrames: stats.DeliveredFrames,
		DroppedFrames:   stats.DroppedFrames,

		CurrentFPS: stats.CurrentFPS,
		AverageFPS: stats.AverageFPS,
		MaxFPS:     stats.MaxFPS,
		MinFPS:     stats.MinFPS,

		MemoryMB:       metrics.BytesToMB(float64(stats.CurrentMemoryBytes)),
		PeakMemoryMB:   metrics.BytesToMB(float64(stats.PeakMemoryBytes)),
		CPUPercent:     stats.CurrentCPUPercent,
		PeakCPUPercent: stats.PeakCPUPercent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	return e.publish(e.topic("stats"), 0, payload)
}

// PublishFinal publishes the terminal summary at QoS 1. The per-frame
// timeline stays in the export file, not on the broker.
func (e *MQTTEmitter) PublishFinal(stats metrics.SessionStats) error {
	report := export.BuildReport(stats)
	report.Frames = []metrics.FrameRecord{}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal final report: %w", err)
	}

	return e.publish(e.topic("final"), 1, payload)
}

// publish sends one payload and tracks the outcome
func (e *MQTTEmitter) publish(topic string, qos byte, payload []byte) error {
	if !e.isConnected() {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		return fmt.Errorf("mqtt not connected")
	}

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("stats published",
		"topic", topic,
		"qos", qos,
		"size", len(payload),
	)

	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()

	return nil
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64)
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// isConnected returns connection status
func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// topic builds <prefix>/<session_id>/<leaf>
func (e *MQTTEmitter) topic(leaf string) string {
	return fmt.Sprintf("%s/%s/%s", e.cfg.TopicPrefix, e.cfg.SessionID, leaf)
}
