package core

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/visiona/framebench/internal/export"
	"github.com/visiona/framebench/internal/metrics"
	"github.com/visiona/framebench/internal/types"
)

// progressEvery is how many frames pass between progress log lines
const progressEvery = 100

// progressObserver logs a heartbeat every N frames so long runs show life
// on the console without per-frame noise
type progressObserver struct {
	every   uint64
	frames  atomic.Uint64
	dropped atomic.Uint64
}

func newProgressObserver(every uint64) *progressObserver {
	if every == 0 {
		every = progressEvery
	}
	return &progressObserver{every: every}
}

func (p *progressObserver) ObserveFrame(ev types.FrameEvent, rec metrics.FrameRecord) {
	if ev.Outcome == types.OutcomeDropped {
		p.dropped.Add(1)
	}
	n := p.frames.Add(1)
	if n%p.every != 0 {
		return
	}
	slog.Info("playback progress",
		"frames", n,
		"dropped", p.dropped.Load(),
		"current_fps", fmt.Sprintf("%.1f", rec.FPS),
	)
}

func (p *progressObserver) ObserveResource(s types.ResourceSample) {}

// timelineObserver streams each frame record into the timeline file.
// Only the pacer goroutine calls ObserveFrame, so the buffered writer
// underneath needs no locking, and the engine closes the file only
// after the session has stopped.
type timelineObserver struct {
	file *export.TimelineFile
}

func (t *timelineObserver) ObserveFrame(ev types.FrameEvent, rec metrics.FrameRecord) {
	if err := t.file.Write(rec); err != nil {
		slog.Warn("timeline write failed", "seq", rec.Seq, "error", err)
	}
}

func (t *timelineObserver) ObserveResource(s types.ResourceSample) {}
