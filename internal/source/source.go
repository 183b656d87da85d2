// Package source provides frame sources for playback and benchmark
// sessions. A FrameSource hands out decoded frames on demand; every
// retrieval has a cost the pacer times as the decode duration.
package source

import (
	"errors"
	"fmt"

	"github.com/visiona/framebench/internal/types"
)

var (
	// ErrSourceUnavailable is wrapped by Open when the media cannot be
	// opened or decoded at all. The session never starts.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEndOfStream is returned by NextFrame once the media is exhausted.
	ErrEndOfStream = errors.New("end of stream")

	// ErrNotOpened is returned by NextFrame before a successful Open.
	ErrNotOpened = errors.New("source not opened")
)

// DecodeError reports a mid-stream decode failure. It ends the session
// gracefully; statistics measured up to the failure are still finalized.
type DecodeError struct {
	// Seq is the sequence number of the failed attempt
	Seq uint64
	// Err is the underlying decoder error
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at frame %d: %v", e.Seq, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FrameSource produces decoded frames and video metadata on demand.
//
// Contract:
//   - Open prepares the source and returns the video metadata; failures
//     wrap ErrSourceUnavailable.
//   - NextFrame blocks until the next frame is decoded. It returns
//     ErrEndOfStream when the media is exhausted and *DecodeError on a
//     mid-stream failure. Never call it concurrently; the pacer is the
//     single consumer.
//   - Close releases resources. Safe to call more than once.
type FrameSource interface {
	Open(path string) (types.VideoMetadata, error)
	NextFrame() (*types.Frame, error)
	Close() error
}
