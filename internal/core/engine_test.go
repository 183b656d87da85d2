package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/visiona/framebench/internal/config"
	"github.com/visiona/framebench/internal/export"
)

// benchConfig returns a benchmark-mode config with every external
// surface disabled, suitable for in-process end-to-end runs
func benchConfig(frames int) *config.Config {
	cfg := config.Default()
	cfg.Video.Benchmark.Enabled = true
	cfg.Video.Benchmark.Frames = frames
	cfg.Video.Benchmark.Resolution = "32x32"
	cfg.Sampler.Disabled = true
	return cfg
}

// runEngine starts Run on a goroutine and returns its error channel
func runEngine(ctx context.Context, e *Engine) <-chan error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- e.Run(ctx)
	}()
	return errChan
}

// TestEngineRunToCompletion runs a full benchmark session and checks
// the terminal statistics and both export artifacts.
func TestEngineRunToCompletion(t *testing.T) {
	dir := t.TempDir()
	cfg := benchConfig(50)
	cfg.Export.JSONPath = filepath.Join(dir, "report.json")
	cfg.Export.TimelinePath = filepath.Join(dir, "timeline.bin")

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := <-runEngine(ctx, engine); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if err := engine.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() unexpected error: %v", err)
	}

	stats, err := engine.FinalStats()
	if err != nil {
		t.Fatalf("FinalStats() unexpected error: %v", err)
	}
	if stats.TotalFrames != 50 {
		t.Errorf("TotalFrames = %d, want 50", stats.TotalFrames)
	}
	if stats.DeliveredFrames+stats.DroppedFrames != stats.TotalFrames {
		t.Errorf("delivered %d + dropped %d != total %d",
			stats.DeliveredFrames, stats.DroppedFrames, stats.TotalFrames)
	}
	if len(stats.Frames) != 50 {
		t.Errorf("terminal timeline has %d records, want 50", len(stats.Frames))
	}

	// Summary report on disk
	data, err := os.ReadFile(cfg.Export.JSONPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var report export.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report does not parse: %v", err)
	}
	if report.SessionID != engine.SessionID() {
		t.Errorf("report session_id = %q, want %q", report.SessionID, engine.SessionID())
	}
	if report.TotalFrames != 50 {
		t.Errorf("report total_frames = %d, want 50", report.TotalFrames)
	}
	if len(report.Frames) != 50 {
		t.Errorf("report has %d frames, want 50", len(report.Frames))
	}

	// Per-frame timeline on disk
	records, err := export.ReadTimelineFile(cfg.Export.TimelinePath)
	if err != nil {
		t.Fatalf("timeline not readable: %v", err)
	}
	if len(records) != 50 {
		t.Errorf("timeline has %d records, want 50", len(records))
	}
	if records[0].Seq != 1 {
		t.Errorf("first timeline record Seq = %d, want 1", records[0].Seq)
	}
}

// TestEngineContextCancelStopsRun cancels the run context mid-playback
// and expects a partial session rather than a hang or an error.
func TestEngineContextCancelStopsRun(t *testing.T) {
	cfg := benchConfig(1000000)
	cfg.Video.Benchmark.FrameCostMS = 1

	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := runEngine(ctx, engine)

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancel")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() unexpected error: %v", err)
	}

	stats, err := engine.FinalStats()
	if err != nil {
		t.Fatalf("FinalStats() unexpected error: %v", err)
	}
	if stats.TotalFrames == 0 {
		t.Error("expected some frames before cancellation")
	}
	if stats.TotalFrames >= 1000000 {
		t.Errorf("TotalFrames = %d, expected a partial run", stats.TotalFrames)
	}
}

// TestEngineFinalStatsIdempotent checks repeated FinalStats calls return
// the same frozen snapshot.
func TestEngineFinalStatsIdempotent(t *testing.T) {
	engine, err := New(benchConfig(10))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := <-runEngine(ctx, engine); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if err := engine.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() unexpected error: %v", err)
	}

	first, err := engine.FinalStats()
	if err != nil {
		t.Fatalf("FinalStats() unexpected error: %v", err)
	}
	second, err := engine.FinalStats()
	if err != nil {
		t.Fatalf("FinalStats() second call unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("FinalStats() returned different snapshots across calls")
	}
}

// TestEngineShutdownBeforeRun checks Shutdown on an engine that never ran
// is a no-op.
func TestEngineShutdownBeforeRun(t *testing.T) {
	engine, err := New(benchConfig(10))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	if err := engine.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before Run = %v, want nil", err)
	}
}

// TestEngineRejectsInvalidConfig checks configuration validation happens
// at construction.
func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default() // no video path, no benchmark mode
	if _, err := New(cfg); err == nil {
		t.Fatal("New() expected error for config without input")
	}
}

// TestEngineRunsOnce checks a second Run on the same engine is refused.
func TestEngineRunsOnce(t *testing.T) {
	engine, err := New(benchConfig(5))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := <-runEngine(ctx, engine); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if err := engine.Run(ctx); err == nil {
		t.Fatal("second Run() expected error")
	}

	if err := engine.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() unexpected error: %v", err)
	}
}
