package source

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/framebench/internal/types"
)

const (
	// probeTimeout bounds the wait for caps negotiation during Open
	probeTimeout = 10 * time.Second
	// busPollInterval keeps the bus watcher responsive to shutdown
	busPollInterval = 50 * time.Millisecond
)

// GstSource decodes a media file through GStreamer.
//
// Pipeline structure:
//
//	filesrc → decodebin → videoconvert → capsfilter(RGB) → appsink
//
// The appsink holds at most one buffer and never drops, so the decoder
// stalls until NextFrame consumes the previous frame. NextFrame latency
// therefore reflects the real decode cost of the next frame rather than a
// queue dequeue.
type GstSource struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink

	frames chan *types.Frame
	errCh  chan error
	eosCh  chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	seq  uint64
	meta types.VideoMetadata

	mu     sync.Mutex
	opened bool
	closed bool
}

// NewGstSource creates a GStreamer-backed frame source
func NewGstSource() *GstSource {
	return &GstSource{
		frames: make(chan *types.Frame),
		errCh:  make(chan error, 1),
		eosCh:  make(chan struct{}),
		stopCh: make(chan struct{}),
	}
}

// Open implements FrameSource. It builds the decode pipeline, negotiates
// caps in the paused state to probe the video metadata, then starts
// playback. Failures wrap ErrSourceUnavailable.
func (s *GstSource) Open(path string) (types.VideoMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return types.VideoMetadata{}, fmt.Errorf("source already opened")
	}

	if _, err := os.Stat(path); err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to create pipeline: %v", ErrSourceUnavailable, err)
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to create filesrc: %v", ErrSourceUnavailable, err)
	}
	filesrc.SetProperty("location", path)

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to create decodebin: %v", ErrSourceUnavailable, err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to create videoconvert: %v", ErrSourceUnavailable, err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to create capsfilter: %v", ErrSourceUnavailable, err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGB"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to create appsink: %v", ErrSourceUnavailable, err)
	}
	appsink.SetProperty("sync", false)    // Decode speed is ours to pace
	appsink.SetProperty("max-buffers", 1) // Stall the decoder until NextFrame consumes
	appsink.SetProperty("drop", false)    // Never lose frames

	pipeline.AddMany(filesrc, decodebin, converter, capsfilter, appsink.Element)

	if err := gst.ElementLinkMany(filesrc, decodebin); err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to link filesrc to decodebin: %v", ErrSourceUnavailable, err)
	}
	if err := gst.ElementLinkMany(converter, capsfilter, appsink.Element); err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to link converter chain: %v", ErrSourceUnavailable, err)
	}

	// decodebin pads appear after type discovery; link the video pad to
	// videoconvert when it shows up. Non-video pads (audio) fail the link
	// and are skipped.
	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		sinkPad := converter.GetStaticPad("sink")
		if sinkPad == nil {
			slog.Error("gst: failed to get sink pad from videoconvert")
			return
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			slog.Debug("gst: skipping pad", "pad", srcPad.GetName(), "ret", ret)
			return
		}
		slog.Debug("gst: decodebin pad linked", "pad", srcPad.GetName())
	})

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	s.pipeline = pipeline
	s.appsink = appsink

	// Pause to negotiate caps without consuming frames
	if err := pipeline.SetState(gst.StatePaused); err != nil {
		pipeline.SetState(gst.StateNull)
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to pause pipeline: %v", ErrSourceUnavailable, err)
	}

	meta, err := s.probeMetadata()
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return types.VideoMetadata{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	s.meta = meta

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return types.VideoMetadata{}, fmt.Errorf("%w: failed to start pipeline: %v", ErrSourceUnavailable, err)
	}

	s.wg.Add(1)
	go s.watchBus()

	s.opened = true

	slog.Info("gst source opened",
		"path", path,
		"resolution", meta.Resolution(),
		"native_fps", meta.NativeFPS,
		"duration", meta.Duration,
	)

	return meta, nil
}

// NextFrame implements FrameSource
func (s *GstSource) NextFrame() (*types.Frame, error) {
	s.mu.Lock()
	opened := s.opened && !s.closed
	s.mu.Unlock()
	if !opened {
		return nil, ErrNotOpened
	}

	// Drain buffered frames before honoring EOS so the tail of the
	// stream is never lost to a racing bus message
	select {
	case f := <-s.frames:
		return f, nil
	default:
	}

	select {
	case f := <-s.frames:
		return f, nil
	case <-s.eosCh:
		return nil, ErrEndOfStream
	case err := <-s.errCh:
		return nil, &DecodeError{Seq: atomic.LoadUint64(&s.seq) + 1, Err: err}
	case <-s.stopCh:
		return nil, ErrEndOfStream
	}
}

// Close implements FrameSource. Safe to call more than once.
func (s *GstSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)

	if s.pipeline != nil {
		if err := s.pipeline.SetState(gst.StateNull); err != nil {
			slog.Warn("gst: failed to set pipeline to NULL", "error", err)
		}
	}
	s.wg.Wait()

	slog.Info("gst source closed", "frames_decoded", atomic.LoadUint64(&s.seq))
	return nil
}

// onNewSample is called by GStreamer when a decoded frame is available.
// The send blocks until NextFrame consumes it, which is what stalls the
// decoder between retrievals.
func (s *GstSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowEOS
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gst: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gst: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse the buffer)
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := atomic.AddUint64(&s.seq, 1)

	var pts time.Duration
	if s.meta.NativeFPS > 0 {
		pts = time.Duration(float64(seq-1) / s.meta.NativeFPS * float64(time.Second))
	}

	frame := &types.Frame{
		Seq:     seq,
		Width:   s.meta.Width,
		Height:  s.meta.Height,
		Data:    frameData,
		PTS:     pts,
		TraceID: uuid.New().String(),
	}

	select {
	case s.frames <- frame:
	case <-s.stopCh:
		return gst.FlowEOS
	}
	return gst.FlowOK
}

// watchBus forwards pipeline EOS and errors to NextFrame
func (s *GstSource) watchBus() {
	defer s.wg.Done()

	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gst source end of stream", "frames_decoded", atomic.LoadUint64(&s.seq))
			close(s.eosCh)
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gst pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			select {
			case s.errCh <- fmt.Errorf("pipeline error: %s", gerr.Error()):
			default:
			}
			return
		}
	}
}

// probeMetadata waits for the paused-state caps negotiation and extracts
// width, height, frame rate, and duration
func (s *GstSource) probeMetadata() (types.VideoMetadata, error) {
	bus := s.pipeline.GetPipelineBus()
	deadline := time.Now().Add(probeTimeout)

	for {
		if time.Now().After(deadline) {
			return types.VideoMetadata{}, fmt.Errorf("timeout waiting for caps negotiation after %v", probeTimeout)
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return types.VideoMetadata{}, fmt.Errorf("pipeline error during probe: %s", gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() != s.pipeline.GetName() {
				continue
			}
			_, current := msg.ParseStateChanged()
			if current != gst.StatePaused {
				continue
			}

			meta, err := s.extractMetadata()
			if err != nil {
				return types.VideoMetadata{}, err
			}
			return meta, nil
		}
	}
}

// extractMetadata reads width, height, and frame rate from negotiated caps
// and queries the stream duration
func (s *GstSource) extractMetadata() (types.VideoMetadata, error) {
	var meta types.VideoMetadata

	elements, err := s.pipeline.GetElements()
	if err != nil {
		return meta, fmt.Errorf("failed to get pipeline elements: %w", err)
	}

	for _, elem := range elements {
		pads, err := elem.GetSinkPads()
		if err != nil || len(pads) == 0 {
			continue
		}

		caps := pads[0].GetCurrentCaps()
		if caps == nil || caps.GetSize() == 0 {
			continue
		}

		structure := caps.GetStructureAt(0)
		if structure.Name() != "video/x-raw" {
			continue
		}

		if val, err := structure.GetValue("width"); err == nil {
			if width, ok := val.(int); ok {
				meta.Width = width
			}
		}
		if val, err := structure.GetValue("height"); err == nil {
			if height, ok := val.(int); ok {
				meta.Height = height
			}
		}
		if val, err := structure.GetValue("framerate"); err == nil {
			meta.NativeFPS = parseFrameRate(fmt.Sprintf("%v", val))
		}

		if meta.Width > 0 && meta.Height > 0 {
			break
		}
	}

	if meta.Width == 0 || meta.Height == 0 {
		return meta, fmt.Errorf("could not find video caps in pipeline")
	}

	// Containers without a declared rate report 0/1; fall back to 30
	if meta.NativeFPS <= 0 {
		meta.NativeFPS = 30.0
		slog.Warn("gst: stream declares no frame rate, assuming 30 fps")
	}

	q := gst.NewDurationQuery(gst.FormatTime)
	if s.pipeline.Query(q) {
		if _, d := q.ParseDuration(); d > 0 {
			meta.Duration = time.Duration(d)
			meta.DurationSeconds = meta.Duration.Seconds()
		}
	}

	return meta, nil
}

// parseFrameRate converts a caps fraction to frames per second.
// Examples: "30/1" → 30.0, "30000/1001" → 29.97, "6/1" → 6.0
func parseFrameRate(framerate string) float64 {
	var numerator, denominator int
	if _, err := fmt.Sscanf(framerate, "%d/%d", &numerator, &denominator); err == nil {
		if denominator > 0 {
			return float64(numerator) / float64(denominator)
		}
		return 0
	}

	var fps float64
	if _, err := fmt.Sscanf(framerate, "%f", &fps); err == nil {
		return fps
	}
	return 0
}
