package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/visiona/framebench/internal/types"
)

// FrameRecord is the per-frame entry of the session timeline.
// FPS is the instantaneous rate at that point (0 when absent or invalid).
type FrameRecord struct {
	Seq        uint64    `json:"seq" msgpack:"seq"`
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	FPS        float64   `json:"fps" msgpack:"fps"`
	DecodeMS   float64   `json:"decode_ms" msgpack:"decode_ms"`
	DeliveryMS float64   `json:"delivery_ms" msgpack:"delivery_ms"`
	Outcome    string    `json:"outcome" msgpack:"outcome"`
	DropReason string    `json:"drop_reason,omitempty" msgpack:"drop_reason,omitempty"`
}

// SessionStats is the aggregate view of one playback session.
// Snapshots are immutable value copies; only the Aggregator mutates the
// underlying state. Live snapshots omit the Frames timeline; the terminal
// snapshot produced by Finalize carries it.
type SessionStats struct {
	// SessionID identifies the session
	SessionID string
	// StartTime is when the session started (UTC)
	StartTime time.Time
	// EndTime is when the session was finalized (zero until then)
	EndTime time.Time
	// Duration is the elapsed session time
	Duration time.Duration
	// Video is the metadata fetched at session start
	Video types.VideoMetadata

	// CurrentFPS is the most recent instantaneous FPS sample
	CurrentFPS float64
	// AverageFPS is the mean of the FPS window
	AverageFPS float64
	// MaxFPS is the session-lifetime maximum instantaneous FPS
	MaxFPS float64
	// MinFPS is the session-lifetime minimum instantaneous FPS
	MinFPS float64

	// CurrentMemoryBytes is the most recent resident set size sample
	CurrentMemoryBytes uint64
	// PeakMemoryBytes is the session-lifetime memory maximum
	PeakMemoryBytes uint64
	// AverageMemoryBytes is the mean of the memory window
	AverageMemoryBytes float64
	// CurrentCPUPercent is the most recent CPU sample
	CurrentCPUPercent float64
	// PeakCPUPercent is the session-lifetime CPU maximum
	PeakCPUPercent float64
	// AverageCPUPercent is the mean of the CPU window
	AverageCPUPercent float64

	// TotalFrames is the number of frame attempts
	TotalFrames uint64
	// DeliveredFrames is the number of attempts the sink accepted in time
	DeliveredFrames uint64
	// DroppedFrames is the number of attempts classified as dropped
	DroppedFrames uint64
	// InvalidTimingSamples counts non-positive inter-frame intervals
	// excluded from FPS statistics
	InvalidTimingSamples uint64

	// Frames is the ordered per-frame timeline (terminal snapshot only)
	Frames []FrameRecord
}

// BytesToMB converts a byte count to mebibytes
func BytesToMB(b float64) float64 {
	return b / 1024.0 / 1024.0
}

// Summary returns the end-of-run text block printed by the CLI
func (s SessionStats) Summary() string {
	var b strings.Builder
	b.WriteString("=== Performance Metrics Summary ===\n")
	fmt.Fprintf(&b, "Session Duration: %.2fs\n", s.Duration.Seconds())
	fmt.Fprintf(&b, "Total Frames: %d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Average FPS: %.2f\n", s.AverageFPS)
	fmt.Fprintf(&b, "Current FPS: %.2f\n", s.CurrentFPS)
	fmt.Fprintf(&b, "Max FPS: %.2f\n", s.MaxFPS)
	fmt.Fprintf(&b, "Min FPS: %.2f\n", s.MinFPS)
	fmt.Fprintf(&b, "Peak Memory: %.2f MB\n", BytesToMB(float64(s.PeakMemoryBytes)))
	fmt.Fprintf(&b, "Average Memory: %.2f MB\n", BytesToMB(s.AverageMemoryBytes))
	fmt.Fprintf(&b, "Peak CPU: %.1f%%\n", s.PeakCPUPercent)
	fmt.Fprintf(&b, "Average CPU: %.1f%%\n", s.AverageCPUPercent)
	fmt.Fprintf(&b, "Dropped Frames: %d\n", s.DroppedFrames)
	return b.String()
}
