package source

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/visiona/framebench/internal/types"
)

// SyntheticConfig contains configuration for the synthetic frame source
type SyntheticConfig struct {
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Frames is the total number of frames before end of stream
	Frames int
	// FrameCost is the simulated per-frame decode cost
	FrameCost time.Duration
	// NativeFPS is the frame rate reported in the metadata (default: 30)
	NativeFPS float64
	// FailAtSeq makes NextFrame return a DecodeError at this sequence
	// number (0 = never fail)
	FailAtSeq uint64
}

// Synthetic fabricates frames at a configurable per-frame cost. It backs
// benchmark mode and the test suites: runs are reproducible and need no
// media file or codec.
type Synthetic struct {
	cfg SyntheticConfig

	mu     sync.Mutex
	seq    uint64
	opened bool
	closed bool
}

// NewSynthetic creates a synthetic frame source
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("source: invalid resolution %dx%d (must be positive)", cfg.Width, cfg.Height)
	}
	if cfg.Frames <= 0 {
		return nil, fmt.Errorf("source: invalid frame count %d (must be > 0)", cfg.Frames)
	}
	if cfg.FrameCost < 0 {
		return nil, fmt.Errorf("source: invalid frame cost %v (must be >= 0)", cfg.FrameCost)
	}
	if cfg.NativeFPS == 0 {
		cfg.NativeFPS = 30.0
	}
	if cfg.NativeFPS < 0 {
		return nil, fmt.Errorf("source: invalid native FPS %.2f (must be > 0)", cfg.NativeFPS)
	}
	return &Synthetic{cfg: cfg}, nil
}

// Open implements FrameSource. The path is ignored.
func (s *Synthetic) Open(path string) (types.VideoMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return types.VideoMetadata{}, fmt.Errorf("source already opened")
	}
	s.opened = true
	s.seq = 0

	duration := time.Duration(float64(s.cfg.Frames) / s.cfg.NativeFPS * float64(time.Second))
	meta := types.VideoMetadata{
		Width:           s.cfg.Width,
		Height:          s.cfg.Height,
		NativeFPS:       s.cfg.NativeFPS,
		Duration:        duration,
		DurationSeconds: duration.Seconds(),
	}

	slog.Info("synthetic source opened",
		"resolution", meta.Resolution(),
		"frames", s.cfg.Frames,
		"frame_cost", s.cfg.FrameCost,
		"native_fps", s.cfg.NativeFPS,
	)

	return meta, nil
}

// NextFrame implements FrameSource. It sleeps the configured frame cost
// and returns a black RGB frame.
func (s *Synthetic) NextFrame() (*types.Frame, error) {
	s.mu.Lock()
	if !s.opened || s.closed {
		s.mu.Unlock()
		return nil, ErrNotOpened
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if seq > uint64(s.cfg.Frames) {
		return nil, ErrEndOfStream
	}
	if s.cfg.FailAtSeq != 0 && seq == s.cfg.FailAtSeq {
		return nil, &DecodeError{Seq: seq, Err: fmt.Errorf("synthetic failure injected")}
	}

	if s.cfg.FrameCost > 0 {
		time.Sleep(s.cfg.FrameCost)
	}

	// Black RGB frame; the content never matters for pacing measurements
	data := make([]byte, s.cfg.Width*s.cfg.Height*3)

	return &types.Frame{
		Seq:     seq,
		Width:   s.cfg.Width,
		Height:  s.cfg.Height,
		Data:    data,
		PTS:     time.Duration(float64(seq-1) / s.cfg.NativeFPS * float64(time.Second)),
		TraceID: uuid.New().String(),
	}, nil
}

// Close implements FrameSource
func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
