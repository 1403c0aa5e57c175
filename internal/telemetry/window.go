package telemetry

// DefaultWindowSize is the number of samples kept for the chart.
const DefaultWindowSize = 20

// Window is a fixed-capacity FIFO of samples. The oldest sample is evicted
// when a push would exceed capacity. Not safe for concurrent use.
type Window struct {
	capacity int
	samples  []Sample
}

// NewWindow creates an empty window. A non-positive capacity uses DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{capacity: capacity, samples: make([]Sample, 0, capacity)}
}

// Push appends s, evicting the oldest sample when full.
func (w *Window) Push(s Sample) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, s)
}

// Samples returns a copy of the samples, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return len(w.samples)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Last returns the most recent sample.
func (w *Window) Last() (Sample, bool) {
	if len(w.samples) == 0 {
		return Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}
