package pacer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/visiona/framebench/internal/sink"
	"github.com/visiona/framebench/internal/source"
	"github.com/visiona/framebench/internal/types"
)

// eventLog collects frame events across goroutines
type eventLog struct {
	mu     sync.Mutex
	events []types.FrameEvent
}

func (l *eventLog) record(ev types.FrameEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []types.FrameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.FrameEvent, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) counts() (delivered, dropped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Outcome == types.OutcomeDropped {
			dropped++
		} else {
			delivered++
		}
	}
	return delivered, dropped
}

func newSynthetic(t *testing.T, cfg source.SyntheticConfig) source.FrameSource {
	t.Helper()
	if cfg.Width == 0 {
		cfg.Width = 8
	}
	if cfg.Height == 0 {
		cfg.Height = 8
	}
	src, err := source.NewSynthetic(cfg)
	if err != nil {
		t.Fatalf("NewSynthetic failed: %v", err)
	}
	if _, err := src.Open("synthetic"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return src
}

// TestPacerFixedCadenceDeliversAll verifies that frames cheaper than the
// interval all deliver and the loop holds the target rate
func TestPacerFixedCadenceDeliversAll(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 30, FrameCost: time.Millisecond})
	defer src.Close()

	log := &eventLog{}
	cadence, _ := types.CadenceFromFPS(100) // 10ms interval

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: cadence,
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	delivered, dropped := log.counts()
	if delivered != 30 {
		t.Errorf("Expected 30 delivered, got %d", delivered)
	}
	if dropped != 0 {
		t.Errorf("Expected 0 dropped, got %d", dropped)
	}

	// 30 frames at 10ms each cannot finish faster than ~29 intervals
	if elapsed < 250*time.Millisecond {
		t.Errorf("Loop ran too fast for a 10ms cadence: %v", elapsed)
	}

	if p.State() != StateStopped {
		t.Errorf("Expected stopped state, got %v", p.State())
	}
}

// TestPacerSlowFramesDropOnDeadline verifies that frames exceeding the
// interval budget are recorded as deadline misses
func TestPacerSlowFramesDropOnDeadline(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 10, FrameCost: 35 * time.Millisecond})
	defer src.Close()

	log := &eventLog{}
	cadence, _ := types.CadenceFromFPS(50) // 20ms interval, every frame misses

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: cadence,
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := log.snapshot()
	if len(events) != 10 {
		t.Fatalf("Expected 10 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Outcome != types.OutcomeDropped {
			t.Errorf("Frame %d: expected dropped, got %v", ev.Seq, ev.Outcome)
		}
		if ev.Reason != types.DropDeadlineMissed {
			t.Errorf("Frame %d: expected deadline_missed, got %v", ev.Seq, ev.Reason)
		}
		if ev.DecodeDuration < 30*time.Millisecond {
			t.Errorf("Frame %d: decode duration %v should reflect the 35ms frame cost", ev.Seq, ev.DecodeDuration)
		}
	}
}

// TestPacerDropSlackForgivesNearMisses verifies the slack multiplier
// widens the deadline budget
func TestPacerDropSlackForgivesNearMisses(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 8, FrameCost: 24 * time.Millisecond})
	defer src.Close()

	log := &eventLog{}
	cadence, _ := types.CadenceFromFPS(50) // 20ms interval, 24ms frames

	p, err := New(Config{
		Source:    src,
		Sink:      sink.NewNullSink(sink.NullConfig{}),
		Cadence:   cadence,
		DropSlack: 1.5, // 30ms budget forgives the 24ms frames
		OnEvent:   log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	delivered, dropped := log.counts()
	if dropped != 0 {
		t.Errorf("Expected slack to forgive all frames, got %d drops", dropped)
	}
	if delivered != 8 {
		t.Errorf("Expected 8 delivered, got %d", delivered)
	}
}

// TestPacerUnboundedNeverDropsOnTiming verifies unbounded cadence runs at
// decode speed without deadline drops
func TestPacerUnboundedNeverDropsOnTiming(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 20, FrameCost: 5 * time.Millisecond})
	defer src.Close()

	log := &eventLog{}

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: types.Unbounded(),
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	delivered, dropped := log.counts()
	if delivered != 20 || dropped != 0 {
		t.Errorf("Expected 20 delivered / 0 dropped, got %d / %d", delivered, dropped)
	}

	// No pacing sleep: 20 frames at 5ms decode should finish well under
	// half a second even on a loaded machine
	if elapsed > 500*time.Millisecond {
		t.Errorf("Unbounded run took %v, expected decode-bound speed", elapsed)
	}
}

// TestPacerSinkRejectionDrops verifies sink rejections become drops with
// the sink_rejected reason and conservation holds
func TestPacerSinkRejectionDrops(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 12})
	defer src.Close()

	log := &eventLog{}

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{RejectEvery: 4}),
		Cadence: types.Unbounded(),
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	delivered, dropped := log.counts()
	if delivered+dropped != 12 {
		t.Errorf("Conservation violated: %d delivered + %d dropped != 12", delivered, dropped)
	}
	if dropped != 3 {
		t.Errorf("Expected 3 sink rejections (seqs 4, 8, 12), got %d", dropped)
	}

	for _, ev := range log.snapshot() {
		if ev.Outcome == types.OutcomeDropped && ev.Reason != types.DropSinkRejected {
			t.Errorf("Frame %d: expected sink_rejected, got %v", ev.Seq, ev.Reason)
		}
	}
}

// TestPacerCooperativeStop verifies Stop interrupts a long run and the
// loop exits cleanly
func TestPacerCooperativeStop(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 100000, FrameCost: time.Millisecond})
	defer src.Close()

	log := &eventLog{}

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: types.Unbounded(),
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run() }()

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error after stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pacer did not stop within 2s")
	}

	select {
	case <-p.Done():
	default:
		t.Error("Done channel should be closed after Run returns")
	}

	events := log.snapshot()
	if len(events) == 0 {
		t.Error("Expected some frames before stop")
	}
	if len(events) >= 100000 {
		t.Error("Stop should have interrupted the run")
	}
	if p.State() != StateStopped {
		t.Errorf("Expected stopped state, got %v", p.State())
	}

	// Stop again is a no-op
	p.Stop()
}

// TestPacerStopInterruptsPacingSleep verifies a stop during the
// inter-frame sleep does not wait out the interval
func TestPacerStopInterruptsPacingSleep(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 10})
	defer src.Close()

	cadence, _ := types.CadenceFromFPS(0.5) // 2s interval
	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: cadence,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run() }()

	// Let the first frame deliver, then stop mid-sleep
	time.Sleep(100 * time.Millisecond)
	start := time.Now()
	p.Stop()

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the pacing sleep")
	}
	if waited := time.Since(start); waited > 500*time.Millisecond {
		t.Errorf("Stop took %v, expected prompt exit from a 2s sleep", waited)
	}
}

// TestPacerDecodeErrorEndsRun verifies a mid-stream decode failure stops
// the loop and surfaces the error
func TestPacerDecodeErrorEndsRun(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 10, FailAtSeq: 5})
	defer src.Close()

	log := &eventLog{}

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: types.Unbounded(),
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runErr := p.Run()
	if runErr == nil {
		t.Fatal("Expected decode error from Run, got nil")
	}

	var decodeErr *source.DecodeError
	if !errors.As(runErr, &decodeErr) {
		t.Fatalf("Expected *source.DecodeError, got %T: %v", runErr, runErr)
	}
	if decodeErr.Seq != 5 {
		t.Errorf("Expected failure at seq 5, got %d", decodeErr.Seq)
	}

	// Frames 1-4 were processed before the failure
	if events := log.snapshot(); len(events) != 4 {
		t.Errorf("Expected 4 events before failure, got %d", len(events))
	}
}

// TestPacerStopBeforeRun verifies a pre-stopped pacer exits immediately
func TestPacerStopBeforeRun(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 10})
	defer src.Close()

	log := &eventLog{}

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: types.Unbounded(),
		OnEvent: log.record,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p.Stop()
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if events := log.snapshot(); len(events) != 0 {
		t.Errorf("Expected no events from a pre-stopped pacer, got %d", len(events))
	}
}

// TestPacerRunsOnce verifies a second Run is refused
func TestPacerRunsOnce(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 2})
	defer src.Close()

	p, err := New(Config{
		Source:  src,
		Sink:    sink.NewNullSink(sink.NullConfig{}),
		Cadence: types.Unbounded(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := p.Run(); err != nil {
		t.Fatalf("First Run failed: %v", err)
	}
	if err := p.Run(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

// TestPacerRejectsBadConfig verifies constructor validation
func TestPacerRejectsBadConfig(t *testing.T) {
	src := newSynthetic(t, source.SyntheticConfig{Frames: 2})
	defer src.Close()
	s := sink.NewNullSink(sink.NullConfig{})

	if _, err := New(Config{Sink: s}); err == nil {
		t.Error("Expected error for missing source, got nil")
	}
	if _, err := New(Config{Source: src}); err == nil {
		t.Error("Expected error for missing sink, got nil")
	}
	if _, err := New(Config{Source: src, Sink: s, DropSlack: 0.5}); err == nil {
		t.Error("Expected error for slack below 1.0, got nil")
	}
}
