// Package metrics converts a stream of frame events and resource samples
// into point-in-time and lifetime session statistics.
//
// # Windowed vs lifetime statistics
//
// Current and average values come from fixed-capacity rolling windows
// (recency-limited). Max/min FPS and peak memory/CPU are session-lifetime
// running extrema updated on every valid sample, independent of window
// eviction, so a transient spike or stall is never lost after it ages out
// of the window.
//
// # Thread Safety
//
// All Aggregator methods are safe for concurrent use. Snapshot may be
// called from a reporting goroutine while RecordFrame and
// RecordResourceSample run from the pacer and sampler goroutines; every
// critical section is short and bounded (live snapshots never copy the
// per-frame timeline).
package metrics

import (
	"sync"
	"time"

	"github.com/visiona/framebench/internal/types"
)

// Aggregator is the statistical core of a session. Construct one per
// session with New; it must not be reused across sessions.
type Aggregator struct {
	mu sync.Mutex

	sessionID string
	video     types.VideoMetadata
	startTime time.Time
	endTime   time.Time

	fpsWindow *Window
	memWindow *Window
	cpuWindow *Window

	// Session-lifetime extrema, independent of window eviction
	maxFPS          float64
	minFPS          float64
	hasFPS          bool
	peakMemoryBytes uint64
	peakCPUPercent  float64

	currentMemoryBytes uint64
	currentCPUPercent  float64

	totalFrames          uint64
	droppedFrames        uint64
	invalidTimingSamples uint64

	lastFrameTime time.Time
	frames        []FrameRecord

	finalized bool
	terminal  SessionStats
}

// New creates an aggregator for one session. fpsWindow and resourceWindow
// are the rolling window capacities in samples.
func New(sessionID string, video types.VideoMetadata, fpsWindow, resourceWindow int) *Aggregator {
	return &Aggregator{
		sessionID: sessionID,
		video:     video,
		startTime: time.Now().UTC(),
		fpsWindow: NewWindow(fpsWindow),
		memWindow: NewWindow(resourceWindow),
		cpuWindow: NewWindow(resourceWindow),
	}
}

// RecordFrame ingests one frame attempt and returns the enriched timeline
// record (with the instantaneous FPS at that point) so callers can fan it
// out without recomputing.
//
// Instantaneous FPS is 1/Δt against the previous frame timestamp. A
// non-positive Δt is an invalid timing sample: excluded from all FPS
// statistics, still counted toward total attempts. The first frame has no
// previous timestamp and contributes no FPS sample.
//
// Panics if called after Finalize.
func (a *Aggregator) RecordFrame(event types.FrameEvent) FrameRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		panic("metrics: RecordFrame called after Finalize")
	}

	a.totalFrames++
	if event.Outcome == types.OutcomeDropped {
		a.droppedFrames++
	}

	var fps float64
	if !a.lastFrameTime.IsZero() {
		dt := event.Timestamp.Sub(a.lastFrameTime).Seconds()
		if dt > 0 {
			fps = 1.0 / dt
			a.fpsWindow.Push(fps)
			if !a.hasFPS || fps > a.maxFPS {
				a.maxFPS = fps
			}
			if !a.hasFPS || fps < a.minFPS {
				a.minFPS = fps
			}
			a.hasFPS = true
		} else {
			a.invalidTimingSamples++
		}
	}
	a.lastFrameTime = event.Timestamp

	rec := FrameRecord{
		Seq:        event.Seq,
		Timestamp:  event.Timestamp,
		FPS:        fps,
		DecodeMS:   event.DecodeDuration.Seconds() * 1000.0,
		DeliveryMS: event.PresentationDuration.Seconds() * 1000.0,
		Outcome:    event.Outcome.String(),
		DropReason: event.Reason.String(),
	}
	a.frames = append(a.frames, rec)

	return rec
}

// RecordResourceSample ingests one memory/CPU poll.
//
// Panics if called after Finalize.
func (a *Aggregator) RecordResourceSample(s types.ResourceSample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		panic("metrics: RecordResourceSample called after Finalize")
	}

	a.memWindow.Push(float64(s.MemoryBytes))
	a.cpuWindow.Push(s.CPUPercent)

	a.currentMemoryBytes = s.MemoryBytes
	a.currentCPUPercent = s.CPUPercent

	if s.MemoryBytes > a.peakMemoryBytes {
		a.peakMemoryBytes = s.MemoryBytes
	}
	if s.CPUPercent > a.peakCPUPercent {
		a.peakCPUPercent = s.CPUPercent
	}
}

// Snapshot returns an immutable point-in-time copy of the session
// statistics. Never mutates aggregator state. The copy omits the per-frame
// timeline to keep the critical section bounded.
func (a *Aggregator) Snapshot() SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return a.terminal
	}
	return a.statsLocked()
}

// Finalize freezes the aggregator and returns the terminal statistics,
// including the full per-frame timeline. Further RecordFrame or
// RecordResourceSample calls panic. Finalize itself is idempotent and
// returns the same terminal snapshot on repeated calls.
func (a *Aggregator) Finalize() SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return a.terminal
	}

	a.finalized = true
	a.endTime = time.Now().UTC()

	stats := a.statsLocked()
	stats.EndTime = a.endTime
	stats.Frames = make([]FrameRecord, len(a.frames))
	copy(stats.Frames, a.frames)

	a.terminal = stats
	return a.terminal
}

// statsLocked builds a stats value. Caller must hold a.mu.
func (a *Aggregator) statsLocked() SessionStats {
	duration := time.Since(a.startTime)
	if a.finalized {
		duration = a.endTime.Sub(a.startTime)
	}

	return SessionStats{
		SessionID: a.sessionID,
		StartTime: a.startTime,
		Duration:  duration,
		Video:     a.video,

		CurrentFPS: a.fpsWindow.Current(),
		AverageFPS: a.fpsWindow.Mean(),
		MaxFPS:     a.maxFPS,
		MinFPS:     a.minFPS,

		CurrentMemoryBytes: a.currentMemoryBytes,
		PeakMemoryBytes:    a.peakMemoryBytes,
		AverageMemoryBytes: a.memWindow.Mean(),
		CurrentCPUPercent:  a.currentCPUPercent,
		PeakCPUPercent:     a.peakCPUPercent,
		AverageCPUPercent:  a.cpuWindow.Mean(),

		TotalFrames:          a.totalFrames,
		DeliveredFrames:      a.totalFrames - a.droppedFrames,
		DroppedFrames:        a.droppedFrames,
		InvalidTimingSamples: a.invalidTimingSamples,
	}
}
