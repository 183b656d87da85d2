package metrics

// Window is a fixed-capacity ring buffer of float64 samples with FIFO
// eviction and a running sum for O(1) mean computation.
//
// Window is not safe for concurrent use on its own; the Aggregator owns
// every window and guards access with its mutex.
type Window struct {
	samples  []float64
	capacity int
	sum      float64
	index    int
	filled   bool
}

// NewWindow creates a window holding at most capacity samples
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		samples:  make([]float64, capacity),
		capacity: capacity,
	}
}

// Push records a new sample, evicting the oldest when the window is full
func (w *Window) Push(v float64) {
	// Subtract the evicted value when overwriting
	if w.filled {
		w.sum -= w.samples[w.index]
	}

	w.samples[w.index] = v
	w.sum += v

	w.index++
	if w.index >= w.capacity {
		w.index = 0
		w.filled = true
	}
}

// Current returns the most recently pushed sample, or 0 when empty
func (w *Window) Current() float64 {
	if w.Len() == 0 {
		return 0
	}
	i := w.index - 1
	if i < 0 {
		i = w.capacity - 1
	}
	return w.samples[i]
}

// Mean returns the arithmetic mean of the window contents, or 0 when empty
func (w *Window) Mean() float64 {
	n := w.Len()
	if n == 0 {
		return 0
	}
	return w.sum / float64(n)
}

// Len returns the number of samples currently held
func (w *Window) Len() int {
	if w.filled {
		return w.capacity
	}
	return w.index
}

// Cap returns the window capacity
func (w *Window) Cap() int {
	return w.capacity
}

// Reset clears all samples
func (w *Window) Reset() {
	w.sum = 0
	w.index = 0
	w.filled = false
	for i := range w.samples {
		w.samples[i] = 0
	}
}
