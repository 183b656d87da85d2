package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete FrameBench configuration
type Config struct {
	SessionID        string        `yaml:"session_id"`         // optional; a UUID is generated when empty
	ShutdownTimeoutS int           `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	Video            VideoConfig   `yaml:"video"`
	Pacer            PacerConfig   `yaml:"pacer"`
	Metrics          MetricsConfig `yaml:"metrics"`
	Sampler          SamplerConfig `yaml:"sampler"`
	Sink             SinkConfig    `yaml:"sink"`
	Export           ExportConfig  `yaml:"export"`
	Server           ServerConfig  `yaml:"server"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
}

// VideoConfig contains the media input settings
type VideoConfig struct {
	Path      string          `yaml:"path"`       // media file path (required unless benchmark mode)
	TargetFPS float64         `yaml:"target_fps"` // target playback rate; 0 = unbounded
	Benchmark BenchmarkConfig `yaml:"benchmark"`
}

// BenchmarkConfig contains synthetic-source settings for benchmark runs
type BenchmarkConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Frames      int     `yaml:"frames"`        // total synthetic frames (default: 1000)
	FrameCostMS float64 `yaml:"frame_cost_ms"` // simulated per-frame decode cost
	Resolution  string  `yaml:"resolution"`    // WxH, e.g. 1280x720
}

// PacerConfig contains frame pacing settings
type PacerConfig struct {
	DropSlack float64 `yaml:"drop_slack"` // deadline slack factor, >= 1.0 (default: 1.0)
}

// MetricsConfig contains rolling window sizes
type MetricsConfig struct {
	FPSWindow      int `yaml:"fps_window"`      // FPS window capacity in samples (default: 60)
	ResourceWindow int `yaml:"resource_window"` // memory/CPU window capacity (default: 120)
}

// SamplerConfig contains resource sampling settings
type SamplerConfig struct {
	Disabled   bool `yaml:"disabled"`
	IntervalMS int  `yaml:"interval_ms"` // wall-clock sampling period (default: 500)
}

// SinkConfig contains presentation sink settings
type SinkConfig struct {
	Mode        string `yaml:"mode"`         // null, file
	OutputDir   string `yaml:"output_dir"`   // required for file mode
	SaveEveryN  int    `yaml:"save_every_n"` // encode every Nth frame (default: 30)
	Format      string `yaml:"format"`       // png, jpeg (default: png)
	JPEGQuality int    `yaml:"jpeg_quality"` // 1-100 (default: 85)
	QueueSize   int    `yaml:"queue_size"`   // pending encode queue (default: 8)
}

// ExportConfig contains output file paths
type ExportConfig struct {
	JSONPath     string `yaml:"json_path"`     // session summary JSON
	TimelinePath string `yaml:"timeline_path"` // per-frame msgpack timeline
}

// ServerConfig contains the stats HTTP server settings
type ServerConfig struct {
	Enabled            bool `yaml:"enabled"`
	Port               int  `yaml:"port"`                 // default: 8080
	SnapshotIntervalMS int  `yaml:"snapshot_interval_ms"` // websocket push period (default: 500)
}

// MQTTConfig contains the optional telemetry emitter settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerHost  string `yaml:"broker_host"`
	BrokerPort  int    `yaml:"broker_port"`  // default: 1883
	TopicPrefix string `yaml:"topic_prefix"` // default: framebench
	IntervalMS  int    `yaml:"interval_ms"`  // snapshot publish period (default: 1000)
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable for
// flag-only runs without a config file. The result still needs a video path
// or benchmark mode before use.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
