package types

import (
	"fmt"
	"time"
)

// Frame represents a single decoded video frame
type Frame struct {
	// Seq is the monotonic sequence number (1-based)
	Seq uint64
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the frame data (RGB format)
	Data []byte
	// PTS is the presentation timestamp relative to stream start
	PTS time.Duration
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// VideoMetadata describes the media a session plays.
// Set once at session start from the frame source, never mutated afterward.
type VideoMetadata struct {
	// Width in pixels
	Width int `json:"width"`
	// Height in pixels
	Height int `json:"height"`
	// NativeFPS is the frame rate declared by the container
	NativeFPS float64 `json:"native_fps"`
	// Duration is the total stream duration (zero when unknown)
	Duration time.Duration `json:"-"`
	// DurationSeconds mirrors Duration for the export schema
	DurationSeconds float64 `json:"duration_seconds"`
}

// Resolution returns the frame size as a string (e.g., "1920x1080")
func (m VideoMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}
