package export

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/visiona/framebench/internal/metrics"
)

// maxTimelineRecord bounds a single framed record. A frame record is tens
// of bytes; anything near this limit means a corrupt prefix.
const maxTimelineRecord = 1 << 20

// TimelineWriter streams frame records as msgpack messages with
// length-prefix framing (4 bytes big-endian + msgpack data). Not safe for
// concurrent writers.
type TimelineWriter struct {
	w io.Writer
}

// NewTimelineWriter wraps w for framed record output
func NewTimelineWriter(w io.Writer) *TimelineWriter {
	return &TimelineWriter{w: w}
}

// Write appends one framed record
func (t *TimelineWriter) Write(rec metrics.FrameRecord) error {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline record: %w", err)
	}

	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))

	if _, err := t.w.Write(prefix); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := t.w.Write(payload); err != nil {
		return fmt.Errorf("failed to write timeline record: %w", err)
	}
	return nil
}

// ReadTimeline decodes framed records from r until EOF. A clean EOF at a
// record boundary ends the stream; a truncated record is an error.
func ReadTimeline(r io.Reader) ([]metrics.FrameRecord, error) {
	var records []metrics.FrameRecord
	lengthBuf := make([]byte, 4)

	for {
		if _, err := io.ReadFull(r, lengthBuf); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("failed to read length prefix: %w", err)
		}

		msgLength := binary.BigEndian.Uint32(lengthBuf)
		if msgLength > maxTimelineRecord {
			return records, fmt.Errorf("timeline record length %d exceeds limit", msgLength)
		}

		payload := make([]byte, msgLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return records, fmt.Errorf("failed to read timeline record: %w", err)
		}

		var rec metrics.FrameRecord
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return records, fmt.Errorf("failed to unmarshal timeline record: %w", err)
		}
		records = append(records, rec)
	}
}

// TimelineFile is a timeline writer backed by a buffered file
type TimelineFile struct {
	file *os.File
	buf  *bufio.Writer
	*TimelineWriter
}

// CreateTimelineFile creates (or truncates) a timeline file at path
func CreateTimelineFile(path string) (*TimelineFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create timeline file: %w", err)
	}

	buf := bufio.NewWriter(file)
	return &TimelineFile{
		file:           file,
		buf:            buf,
		TimelineWriter: NewTimelineWriter(buf),
	}, nil
}

// Close flushes buffered records and closes the file
func (t *TimelineFile) Close() error {
	if err := t.buf.Flush(); err != nil {
		t.file.Close()
		return fmt.Errorf("failed to flush timeline: %w", err)
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close timeline file: %w", err)
	}
	return nil
}

// ReadTimelineFile decodes every record in the timeline file at path
func ReadTimelineFile(path string) ([]metrics.FrameRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline file: %w", err)
	}
	defer file.Close()

	return ReadTimeline(bufio.NewReader(file))
}
