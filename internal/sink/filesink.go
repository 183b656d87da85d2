package sink

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visiona/framebench/internal/types"
)

// FileSink persists selected frames to disk as PNG or JPEG.
//
// Encoding is slow relative to frame cadence, so Deliver only enqueues:
// a background worker does the conversion and disk write. When the queue
// is full the frame is Rejected rather than blocking the playback loop.
type FileSink struct {
	outputDir   string
	format      string
	jpegQuality int
	every       uint64

	queue chan queuedFrame
	wg    sync.WaitGroup

	closeOnce sync.Once

	framesSaved  atomic.Uint64
	framesFailed atomic.Uint64
	rejected     atomic.Uint64
}

type queuedFrame struct {
	frame *types.Frame
	when  time.Time
}

// FileConfig tunes the file sink
type FileConfig struct {
	// OutputDir receives the encoded frames (created if missing)
	OutputDir string
	// Format is "png" or "jpeg"
	Format string
	// JPEGQuality is 1-100, only used for JPEG
	JPEGQuality int
	// Every saves one frame out of every N (1 saves all)
	Every uint64
	// QueueDepth bounds the encode backlog before deliveries reject
	QueueDepth int
}

// NewFileSink creates a frame-persisting sink and starts its encode worker
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if cfg.Format != "png" && cfg.Format != "jpeg" {
		return nil, fmt.Errorf("unsupported format: %s (must be png or jpeg)", cfg.Format)
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("invalid jpeg quality %d (must be 1-100)", cfg.JPEGQuality)
	}
	if cfg.Every == 0 {
		cfg.Every = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 8
	}

	fs := &FileSink{
		outputDir:   cfg.OutputDir,
		format:      cfg.Format,
		jpegQuality: cfg.JPEGQuality,
		every:       cfg.Every,
		queue:       make(chan queuedFrame, cfg.QueueDepth),
	}

	fs.wg.Add(1)
	go fs.encodeLoop()

	return fs, nil
}

// Deliver implements FrameSink. Frames outside the sampling cadence are
// accepted without work; selected frames are rejected when the encode
// queue is full.
func (fs *FileSink) Deliver(frame *types.Frame) Result {
	if (frame.Seq-1)%fs.every != 0 {
		return Accepted
	}

	select {
	case fs.queue <- queuedFrame{frame: frame, when: time.Now()}:
		return Accepted
	default:
		fs.rejected.Add(1)
		return Rejected
	}
}

// Close implements FrameSink. It drains the encode queue before returning.
func (fs *FileSink) Close() error {
	fs.closeOnce.Do(func() {
		close(fs.queue)
	})
	fs.wg.Wait()

	slog.Info("file sink closed",
		"saved", fs.framesSaved.Load(),
		"failed", fs.framesFailed.Load(),
		"rejected", fs.rejected.Load(),
	)
	return nil
}

// Stats returns save counters
func (fs *FileSink) Stats() (saved, failed, rejected uint64) {
	return fs.framesSaved.Load(), fs.framesFailed.Load(), fs.rejected.Load()
}

func (fs *FileSink) encodeLoop() {
	defer fs.wg.Done()
	for item := range fs.queue {
		if err := fs.save(item.frame, item.when); err != nil {
			fs.framesFailed.Add(1)
			slog.Warn("failed to save frame", "seq", item.frame.Seq, "error", err)
			continue
		}
		fs.framesSaved.Add(1)
	}
}

// save writes one frame to disk.
//
// Filename format: frame_{seq:06d}_{timestamp}.{ext}
// Example: frame_000042_20250817_234517.123.png
func (fs *FileSink) save(frame *types.Frame, when time.Time) error {
	img, err := rgbToRGBA(frame)
	if err != nil {
		return fmt.Errorf("RGB conversion failed: %w", err)
	}

	filename := fmt.Sprintf("frame_%06d_%s.%s",
		frame.Seq,
		when.Format("20060102_150405.000"),
		fs.format)

	file, err := os.Create(filepath.Join(fs.outputDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch fs.format {
	case "png":
		if err := png.Encode(file, img); err != nil {
			return fmt.Errorf("PNG encode failed: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: fs.jpegQuality}); err != nil {
			return fmt.Errorf("JPEG encode failed: %w", err)
		}
	}

	return nil
}

// rgbToRGBA converts RGB raw bytes (3 bytes/pixel) to image.RGBA
// (4 bytes/pixel) with an opaque alpha channel
func rgbToRGBA(frame *types.Frame) (*image.RGBA, error) {
	expectedSize := frame.Width * frame.Height * 3
	if len(frame.Data) != expectedSize {
		return nil, fmt.Errorf("invalid RGB data size: got %d, expected %d",
			len(frame.Data), expectedSize)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i < frame.Width*frame.Height; i++ {
		img.Pix[i*4+0] = frame.Data[i*3+0] // R
		img.Pix[i*4+1] = frame.Data[i*3+1] // G
		img.Pix[i*4+2] = frame.Data[i*3+2] // B
		img.Pix[i*4+3] = 255               // A (opaque)
	}

	return img, nil
}
