package metrics

import (
	"math"
	"testing"
)

// TestWindowPartialFill verifies stats before the window wraps.
func TestWindowPartialFill(t *testing.T) {
	w := NewWindow(5)

	w.Push(10)
	w.Push(20)
	w.Push(30)

	if w.Len() != 3 {
		t.Errorf("Expected len 3, got %d", w.Len())
	}
	if w.Cap() != 5 {
		t.Errorf("Expected cap 5, got %d", w.Cap())
	}
	if got := w.Current(); got != 30 {
		t.Errorf("Expected current 30, got %v", got)
	}
	if got := w.Mean(); math.Abs(got-20) > 1e-9 {
		t.Errorf("Expected mean 20, got %v", got)
	}
}

// TestWindowEviction verifies FIFO eviction once capacity is reached.
func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)

	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}

	// Window now holds [3, 4, 5]
	if w.Len() != 3 {
		t.Errorf("Expected len 3, got %d", w.Len())
	}
	if got := w.Current(); got != 5 {
		t.Errorf("Expected current 5, got %v", got)
	}
	if got := w.Mean(); math.Abs(got-4) > 1e-9 {
		t.Errorf("Expected mean 4, got %v", got)
	}
}

// TestWindowRunningSum verifies the incremental sum matches a recomputed mean
// after many wraps.
func TestWindowRunningSum(t *testing.T) {
	const capacity = 7
	w := NewWindow(capacity)

	var pushed []float64
	for i := 0; i < 100; i++ {
		v := float64(i%13) * 1.5
		w.Push(v)
		pushed = append(pushed, v)
	}

	var sum float64
	for _, v := range pushed[len(pushed)-capacity:] {
		sum += v
	}
	want := sum / capacity

	if got := w.Mean(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected mean %v, got %v", want, got)
	}
}

// TestWindowEmpty verifies zero values before any sample.
func TestWindowEmpty(t *testing.T) {
	w := NewWindow(4)

	if w.Len() != 0 {
		t.Errorf("Expected len 0, got %d", w.Len())
	}
	if got := w.Current(); got != 0 {
		t.Errorf("Expected current 0, got %v", got)
	}
	if got := w.Mean(); got != 0 {
		t.Errorf("Expected mean 0, got %v", got)
	}
}

// TestWindowReset verifies Reset clears contents and counters.
func TestWindowReset(t *testing.T) {
	w := NewWindow(3)
	w.Push(1)
	w.Push(2)
	w.Push(3)
	w.Push(4)

	w.Reset()

	if w.Len() != 0 {
		t.Errorf("Expected len 0 after reset, got %d", w.Len())
	}
	if got := w.Mean(); got != 0 {
		t.Errorf("Expected mean 0 after reset, got %v", got)
	}

	w.Push(9)
	if got := w.Current(); got != 9 {
		t.Errorf("Expected current 9 after reset+push, got %v", got)
	}
}

// TestWindowNonPositiveCapacity verifies the constructor clamps to 1.
func TestWindowNonPositiveCapacity(t *testing.T) {
	w := NewWindow(0)
	w.Push(5)
	w.Push(7)

	if w.Cap() != 1 {
		t.Errorf("Expected cap 1, got %d", w.Cap())
	}
	if got := w.Current(); got != 7 {
		t.Errorf("Expected current 7, got %v", got)
	}
}

func BenchmarkWindowPush(b *testing.B) {
	w := NewWindow(60)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Push(float64(i))
	}
}
