package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/sxlabs/sxconsole/internal/clock"
	"github.com/sxlabs/sxconsole/internal/log"
)

// Reconnect defaults.
const (
	DefaultMaxReconnects  = 8
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("telemetry stream already started")

// Status is the connection state of the stream.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusReconnecting
	StatusGaveUp
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "live"
	case StatusReconnecting:
		return "reconnecting"
	case StatusGaveUp:
		return "offline"
	case StatusClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Update is delivered to Options.OnUpdate after every status change and
// every applied sample.
type Update struct {
	Status Status
	Window []Sample
	Heat   Heat
}

// Stats counts stream events.
type Stats struct {
	Received   int
	Dropped    int
	Applied    int
	Reconnects int
}

// Options configures an Aggregator.
type Options struct {
	URL            string
	Header         http.Header
	HTTPClient     *http.Client
	Debounce       time.Duration
	WindowSize     int
	MaxReconnects  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Clock          clock.Clock
	Logger         *log.Logger
	OnUpdate       func(Update)
}

// Aggregator holds one stream connection and the rolling sample window.
type Aggregator struct {
	opts     Options
	clock    clock.Clock
	logger   *log.Logger
	debounce *Debouncer[Sample]

	mu      sync.Mutex
	window  *Window
	status  Status
	stats   Stats
	lastID  string
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAggregator creates an idle Aggregator.
func NewAggregator(opts Options) *Aggregator {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = DefaultMaxReconnects
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	a := &Aggregator{
		opts:   opts,
		clock:  clock.OrReal(opts.Clock),
		logger: opts.Logger,
		window: NewWindow(opts.WindowSize),
	}
	a.debounce = NewDebouncer(opts.Debounce, a.clock, a.apply)
	return a
}

// Start opens the stream in the background. Only one connection is ever
// held per Aggregator.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started || a.closed {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.mu.Unlock()

	a.setStatus(StatusConnecting)
	go a.run(ctx)
	return nil
}

// Close drops the connection and any pending sample, then waits for the
// reader to stop.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	a.debounce.Close()
	if cancel != nil {
		cancel()
		<-done
	}
	a.setStatus(StatusClosed)
}

// Status returns the connection state.
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Window returns a copy of the current samples, oldest first.
func (a *Aggregator) Window() []Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.Samples()
}

// Stats returns the event counters.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Aggregator) run(ctx context.Context) {
	defer close(a.done)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = a.opts.InitialBackoff
	exp.MaxInterval = a.opts.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(a.opts.MaxReconnects)), ctx)

	attempt := 0
	for {
		opened, err := a.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if opened {
			policy.Reset()
			attempt = 0
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			a.logger.Record(log.LogEvent{Event: log.EventStreamGaveUp, Attempt: attempt, Error: errString(err)})
			a.setStatus(StatusGaveUp)
			return
		}
		attempt++
		a.mu.Lock()
		a.stats.Reconnects++
		a.mu.Unlock()
		a.logger.Record(log.LogEvent{
			Event:      log.EventStreamReconnecting,
			Attempt:    attempt,
			Error:      errString(err),
			DurationMs: next.Milliseconds(),
		})
		a.setStatus(StatusReconnecting)

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// connect holds one connection until it fails. opened reports whether the
// server accepted the stream.
func (a *Aggregator) connect(ctx context.Context) (opened bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.opts.URL, nil)
	if err != nil {
		return false, errors.Wrap(err, "build stream request")
	}
	for k, vs := range a.opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	a.mu.Lock()
	if a.lastID != "" {
		req.Header.Set("Last-Event-ID", a.lastID)
	}
	a.mu.Unlock()

	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "open stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, errors.Errorf("open stream: status %d", resp.StatusCode)
	}

	a.setStatus(StatusOpen)
	a.logger.Record(log.LogEvent{Event: log.EventStreamOpen, Status: resp.StatusCode})

	reader := NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return true, errors.New("stream ended")
			}
			return true, errors.Wrap(err, "read stream")
		}
		a.handle(ev)
	}
}

func (a *Aggregator) handle(ev Event) {
	sample, err := ParseSample(ev.Data, a.clock.Now())
	if err == nil {
		a.debounce.Submit(sample)
	}

	a.mu.Lock()
	a.stats.Received++
	if ev.ID != "" {
		a.lastID = ev.ID
	}
	if err != nil {
		a.stats.Dropped++
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Record(log.LogEvent{Event: log.EventEventDropped, Reason: ev.Type, Error: err.Error()})
	}
}

// apply pushes a debounced sample onto the window.
func (a *Aggregator) apply(s Sample) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.window.Push(s)
	a.stats.Applied++
	u := a.updateLocked()
	a.mu.Unlock()
	a.emit(u)
}

func (a *Aggregator) setStatus(s Status) {
	a.mu.Lock()
	if a.status == s || a.status == StatusClosed {
		a.mu.Unlock()
		return
	}
	a.status = s
	u := a.updateLocked()
	a.mu.Unlock()
	a.emit(u)
}

func (a *Aggregator) updateLocked() Update {
	samples := a.window.Samples()
	return Update{Status: a.status, Window: samples, Heat: HeatOf(samples)}
}

func (a *Aggregator) emit(u Update) {
	if a.opts.OnUpdate != nil {
		a.opts.OnUpdate(u)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
