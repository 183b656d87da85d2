package config

import (
	"fmt"
	"regexp"
)

var (
	sessionIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)
	resolutionPattern = regexp.MustCompile(`^\d+x\d+$`)
)

// Validate checks if the configuration is valid and injects defaults
// for fields left at their zero value.
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	// Validate session_id when provided (empty means auto-generated)
	if cfg.SessionID != "" && !sessionIDPattern.MatchString(cfg.SessionID) {
		return fmt.Errorf("session_id must match pattern [a-zA-Z0-9-]+")
	}

	// Validate video input
	if cfg.Video.Path == "" && !cfg.Video.Benchmark.Enabled {
		return fmt.Errorf("video.path is required unless benchmark mode is enabled")
	}
	if cfg.Video.TargetFPS < 0 {
		return fmt.Errorf("video.target_fps must be >= 0 (0 means unbounded)")
	}
	if cfg.Video.Benchmark.Frames <= 0 {
		return fmt.Errorf("video.benchmark.frames must be > 0")
	}
	if cfg.Video.Benchmark.FrameCostMS < 0 {
		return fmt.Errorf("video.benchmark.frame_cost_ms must be >= 0")
	}
	if !resolutionPattern.MatchString(cfg.Video.Benchmark.Resolution) {
		return fmt.Errorf("video.benchmark.resolution must be WxH, got '%s'", cfg.Video.Benchmark.Resolution)
	}

	// Validate pacer
	if cfg.Pacer.DropSlack < 1.0 {
		return fmt.Errorf("pacer.drop_slack must be >= 1.0, got %.2f", cfg.Pacer.DropSlack)
	}

	// Validate windows
	if cfg.Metrics.FPSWindow <= 0 {
		return fmt.Errorf("metrics.fps_window must be > 0")
	}
	if cfg.Metrics.ResourceWindow <= 0 {
		return fmt.Errorf("metrics.resource_window must be > 0")
	}

	// Validate sampler
	if cfg.Sampler.IntervalMS <= 0 {
		return fmt.Errorf("sampler.interval_ms must be > 0")
	}

	// Validate sink
	switch cfg.Sink.Mode {
	case "null":
	case "file":
		if cfg.Sink.OutputDir == "" {
			return fmt.Errorf("sink.output_dir is required for file mode")
		}
	default:
		return fmt.Errorf("sink.mode must be 'null' or 'file', got '%s'", cfg.Sink.Mode)
	}
	switch cfg.Sink.Format {
	case "png", "jpeg":
	default:
		return fmt.Errorf("sink.format must be 'png' or 'jpeg', got '%s'", cfg.Sink.Format)
	}
	if cfg.Sink.SaveEveryN <= 0 {
		return fmt.Errorf("sink.save_every_n must be > 0")
	}
	if cfg.Sink.JPEGQuality < 1 || cfg.Sink.JPEGQuality > 100 {
		return fmt.Errorf("sink.jpeg_quality must be in 1-100, got %d", cfg.Sink.JPEGQuality)
	}
	if cfg.Sink.QueueSize <= 0 {
		return fmt.Errorf("sink.queue_size must be > 0")
	}

	// Validate server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.SnapshotIntervalMS <= 0 {
		return fmt.Errorf("server.snapshot_interval_ms must be > 0")
	}

	// Validate MQTT when enabled
	if cfg.MQTT.Enabled {
		if cfg.MQTT.BrokerHost == "" {
			return fmt.Errorf("mqtt.broker_host is required when mqtt is enabled")
		}
		if cfg.MQTT.BrokerPort <= 0 || cfg.MQTT.BrokerPort > 65535 {
			return fmt.Errorf("mqtt.broker_port must be in 1-65535, got %d", cfg.MQTT.BrokerPort)
		}
		if cfg.MQTT.IntervalMS <= 0 {
			return fmt.Errorf("mqtt.interval_ms must be > 0")
		}
	}

	return nil
}

// applyDefaults fills zeroed fields with their documented defaults
func applyDefaults(cfg *Config) {
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}
	if cfg.Video.Benchmark.Frames == 0 {
		cfg.Video.Benchmark.Frames = 1000
	}
	if cfg.Video.Benchmark.Resolution == "" {
		cfg.Video.Benchmark.Resolution = "1280x720"
	}
	if cfg.Pacer.DropSlack == 0 {
		cfg.Pacer.DropSlack = 1.0
	}
	if cfg.Metrics.FPSWindow == 0 {
		cfg.Metrics.FPSWindow = 60
	}
	if cfg.Metrics.ResourceWindow == 0 {
		cfg.Metrics.ResourceWindow = 120
	}
	if cfg.Sampler.IntervalMS == 0 {
		cfg.Sampler.IntervalMS = 500
	}
	if cfg.Sink.Mode == "" {
		cfg.Sink.Mode = "null"
	}
	if cfg.Sink.SaveEveryN == 0 {
		cfg.Sink.SaveEveryN = 30
	}
	if cfg.Sink.Format == "" {
		cfg.Sink.Format = "png"
	}
	if cfg.Sink.JPEGQuality == 0 {
		cfg.Sink.JPEGQuality = 85
	}
	if cfg.Sink.QueueSize == 0 {
		cfg.Sink.QueueSize = 8
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SnapshotIntervalMS == 0 {
		cfg.Server.SnapshotIntervalMS = 500
	}
	if cfg.MQTT.BrokerPort == 0 {
		cfg.MQTT.BrokerPort = 1883
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "framebench"
	}
	if cfg.MQTT.IntervalMS == 0 {
		cfg.MQTT.IntervalMS = 1000
	}
}

// BenchmarkDimensions parses the benchmark resolution into width and height.
// Call only after Validate.
func (c *Config) BenchmarkDimensions() (width, height int) {
	fmt.Sscanf(c.Video.Benchmark.Resolution, "%dx%d", &width, &height)
	return width, height
}
