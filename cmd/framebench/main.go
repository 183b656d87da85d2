package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/visiona/framebench/internal/config"
	"github.com/visiona/framebench/internal/core"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	videoPath := flag.String("video", "", "Path to the media file to play")
	targetFPS := flag.Float64("target-fps", 0, "Target playback rate in frames per second (0 = unbounded)")
	exportPath := flag.String("export", "", "Write the session summary JSON to this path")
	timelinePath := flag.String("timeline", "", "Write the per-frame msgpack timeline to this path")
	benchmark := flag.Bool("benchmark", false, "Use the synthetic frame source instead of a media file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override file settings
	if *videoPath != "" {
		cfg.Video.Path = *videoPath
	}
	if *targetFPS > 0 {
		cfg.Video.TargetFPS = *targetFPS
	}
	if *exportPath != "" {
		cfg.Export.JSONPath = *exportPath
	}
	if *timelinePath != "" {
		cfg.Export.TimelinePath = *timelinePath
	}
	if *benchmark {
		cfg.Video.Benchmark.Enabled = true
	}

	engine, err := core.New(cfg)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run playback in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- engine.Run(ctx) // Always send, even if nil
	}()

	// Wait for playback to finish or a shutdown signal
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		runErr = <-errChan
	case runErr = <-errChan:
	}

	// Graceful shutdown
	shutdownTimeout := engine.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := engine.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	// Print the terminal summary to stdout for interactive runs
	if stats, err := engine.FinalStats(); err == nil {
		fmt.Println(stats.Summary())
	}

	if runErr != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
