package telemetry

import (
	"sync"
	"time"

	"github.com/sxlabs/sxconsole/internal/clock"
)

// DefaultDebounce is the minimum spacing between applied samples.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces bursts of values. It holds a single pending value:
// the first Submit arms a timer for the interval, later submits replace the
// pending value, and when the timer fires the latest value is applied.
// Values are never queued or merged.
type Debouncer[T any] struct {
	clock    clock.Clock
	interval time.Duration
	apply    func(T)

	mu      sync.Mutex
	pending T
	has     bool
	timer   clock.Timer
	closed  bool
}

// NewDebouncer creates a Debouncer calling apply at most once per interval.
func NewDebouncer[T any](interval time.Duration, clk clock.Clock, apply func(T)) *Debouncer[T] {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &Debouncer[T]{clock: clock.OrReal(clk), interval: interval, apply: apply}
}

// Submit makes v the pending value.
func (d *Debouncer[T]) Submit(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = v
	d.has = true
	if d.timer == nil {
		d.timer = d.clock.AfterFunc(d.interval, d.flush)
	}
}

// Pending reports whether a value is waiting to be applied.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.has
}

// Close drops any pending value and stops the timer.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.has = false
	var zero T
	d.pending = zero
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) flush() {
	d.mu.Lock()
	d.timer = nil
	if d.closed || !d.has {
		d.mu.Unlock()
		return
	}
	v := d.pending
	var zero T
	d.pending = zero
	d.has = false
	d.mu.Unlock()

	d.apply(v)
}
