// Package export persists terminal session statistics.
//
// Two formats are produced:
//
//   - A JSON report with the canonical benchmark schema, readable by the
//     analysis tooling that consumes earlier benchmark outputs.
//   - A binary per-frame timeline: msgpack records with length-prefix
//     framing, written incrementally during playback.
//
// The JSON field names and units are a compatibility contract. Changing
// them breaks downstream consumers.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/visiona/framebench/internal/metrics"
	"github.com/visiona/framebench/internal/types"
)

// Report is the canonical JSON export schema.
//
// Timestamps serialize as RFC 3339. Memory values are mebibytes, CPU is
// percent, durations are seconds.
type Report struct {
	SessionID            string                `json:"session_id"`
	StartTime            time.Time             `json:"start_time"`
	EndTime              time.Time             `json:"end_time"`
	TotalDurationSeconds float64               `json:"total_duration_seconds"`
	TotalFrames          uint64                `json:"total_frames"`
	DroppedFrames        uint64                `json:"dropped_frames"`
	AverageFPS           float64               `json:"average_fps"`
	MaxFPS               float64               `json:"max_fps"`
	MinFPS               float64               `json:"min_fps"`
	PeakMemoryMB         float64               `json:"peak_memory_mb"`
	AverageMemoryMB      float64               `json:"average_memory_mb"`
	PeakCPUPercent       float64               `json:"peak_cpu_percent"`
	AverageCPUPercent    float64               `json:"average_cpu_percent"`
	Video                types.VideoMetadata   `json:"video"`
	Frames               []metrics.FrameRecord `json:"frames"`
}

// BuildReport converts terminal session statistics into the export schema
func BuildReport(stats metrics.SessionStats) Report {
	frames := stats.Frames
	if frames == nil {
		frames = []metrics.FrameRecord{}
	}

	return Report{
		SessionID:            stats.SessionID,
		StartTime:            stats.StartTime,
		EndTime:              stats.EndTime,
		TotalDurationSeconds: stats.Duration.Seconds(),
		TotalFrames:          stats.TotalFrames,
		DroppedFrames:        stats.DroppedFrames,
		AverageFPS:           stats.AverageFPS,
		MaxFPS:               stats.MaxFPS,
		MinFPS:               stats.MinFPS,
		PeakMemoryMB:         metrics.BytesToMB(float64(stats.PeakMemoryBytes)),
		AverageMemoryMB:      metrics.BytesToMB(stats.AverageMemoryBytes),
		PeakCPUPercent:       stats.PeakCPUPercent,
		AverageCPUPercent:    stats.AverageCPUPercent,
		Video:                stats.Video,
		Frames:               frames,
	}
}

// WriteJSON writes the report for stats to path, pretty-printed
func WriteJSON(path string, stats metrics.SessionStats) error {
	report := BuildReport(stats)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
