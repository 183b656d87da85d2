package types

import "time"

// Outcome classifies the result of one frame attempt
type Outcome int

const (
	// OutcomeDelivered means the sink accepted the frame within budget
	OutcomeDelivered Outcome = iota
	// OutcomeDropped means the frame could not be shown in time or was rejected
	OutcomeDropped
)

// String returns a human-readable string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// DropReason explains why a frame attempt was classified as dropped
type DropReason int

const (
	// DropNone means the frame was not dropped
	DropNone DropReason = iota
	// DropDeadlineMissed means the next scheduled tick elapsed before delivery completed
	DropDeadlineMissed
	// DropSinkRejected means the presentation sink refused the frame
	DropSinkRejected
)

// String returns a human-readable string representation of the drop reason
func (r DropReason) String() string {
	switch r {
	case DropNone:
		return ""
	case DropDeadlineMissed:
		return "deadline_missed"
	case DropSinkRejected:
		return "sink_rejected"
	default:
		return "unknown"
	}
}

// FrameEvent records the timing and outcome of one frame attempt.
// Immutable once created; produced once per pacer loop iteration and
// owned by the metrics aggregator after submission.
type FrameEvent struct {
	// Seq is the monotonic sequence number of the attempt
	Seq uint64
	// Timestamp is when the attempt completed
	Timestamp time.Time
	// DecodeDuration is the time spent fetching the frame from the source
	DecodeDuration time.Duration
	// PresentationDuration is the time spent delivering the frame to the sink
	PresentationDuration time.Duration
	// Outcome is the attempt classification
	Outcome Outcome
	// Reason explains a dropped outcome (DropNone when delivered)
	Reason DropReason
}

// ResourceSample is one poll of process memory and CPU usage.
// Immutable; produced on a fixed cadence independent of frame cadence.
type ResourceSample struct {
	// Timestamp is when the sample was taken
	Timestamp time.Time
	// MemoryBytes is the process resident set size
	MemoryBytes uint64
	// CPUPercent is the process CPU utilization (0-100 per core aggregate)
	CPUPercent float64
}
