// Package log provides structured event logging.
// Events are appended as JSON lines to .sxconsole/log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Event type constants.
const (
	EventHydrated           = "hydrated"
	EventResumeFailed       = "resume_failed"
	EventSendStarted        = "send_started"
	EventSendFailed         = "send_failed"
	EventTurnAppended       = "turn_appended"
	EventAdminEntered       = "admin_entered"
	EventAdminExited        = "admin_exited"
	EventAdminExpired       = "admin_expired"
	EventAdminExpireFailed  = "admin_expire_failed"
	EventCacheCleared       = "cache_cleared"
	EventFeedbackSent       = "feedback_sent"
	EventStreamOpen         = "stream_open"
	EventStreamReconnecting = "stream_reconnecting"
	EventStreamGaveUp       = "stream_gave_up"
	EventEventDropped       = "telemetry_event_dropped"
	EventTrainingRun        = "training_run"
)

// LogEvent represents a single structured event written to the log.
// Admin-mode message content is never placed in an event.
type LogEvent struct {
	Time       time.Time              `json:"time"`
	Level      string                 `json:"level,omitempty"`
	Event      string                 `json:"event"`
	Mode       string                 `json:"mode,omitempty"`
	TurnID     string                 `json:"turn,omitempty"`
	Turns      int                    `json:"turns,omitempty"`
	Status     int                    `json:"status,omitempty"`
	Attempt    int                    `json:"attempt,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a rotated log file.
type Logger struct {
	path string
	mu   sync.Mutex
	out  *captureWriter
	file io.Closer
	zl   zerolog.Logger
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	console io.Writer
	level   zerolog.Level
	maxMB   int
}

// WithConsole mirrors every event to w in zerolog's human-readable format.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithLevel sets the minimum level for diagnostic events.
func WithLevel(level zerolog.Level) Option {
	return func(o *options) { o.level = level }
}

// NewLogger creates a Logger that writes to .sxconsole/log.jsonl inside dir.
// Creates the .sxconsole/ directory if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string, opts ...Option) (*Logger, error) {
	o := options{level: zerolog.InfoLevel, maxMB: 5}
	for _, opt := range opts {
		opt(&o)
	}

	stateDir := filepath.Join(dir, ".sxconsole")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create .sxconsole directory")
	}

	path := filepath.Join(stateDir, "log.jsonl")
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    o.maxMB,
		MaxBackups: 3,
	}

	cw := &captureWriter{w: rotator}
	var w io.Writer = cw
	if o.console != nil {
		w = zerolog.MultiLevelWriter(cw, zerolog.ConsoleWriter{Out: o.console, TimeFormat: time.Kitchen})
	}

	return &Logger{
		path: path,
		out:  cw,
		file: rotator,
		zl:   zerolog.New(w).Level(o.level),
	}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{out: &captureWriter{w: io.Discard}, zl: zerolog.Nop()}
}

// Path returns the log file path, empty for a Nop logger.
func (l *Logger) Path() string {
	return l.path
}

// Close releases the underlying file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// Thread-safe via mutex.
func (l *Logger) Append(event LogEvent) error {
	if l == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.out.reset()
	e := l.zl.Info().Str("time", event.Time.Format(time.RFC3339Nano)).Str("event", event.Event)
	if event.Mode != "" {
		e = e.Str("mode", event.Mode)
	}
	if event.TurnID != "" {
		e = e.Str("turn", event.TurnID)
	}
	if event.Turns != 0 {
		e = e.Int("turns", event.Turns)
	}
	if event.Status != 0 {
		e = e.Int("status", event.Status)
	}
	if event.Attempt != 0 {
		e = e.Int("attempt", event.Attempt)
	}
	if event.Reason != "" {
		e = e.Str("reason", event.Reason)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	if event.DurationMs != 0 {
		e = e.Int64("duration_ms", event.DurationMs)
	}
	if len(event.Data) > 0 {
		e = e.Interface("data", event.Data)
	}
	e.Send()

	if err := l.out.lastErr(); err != nil {
		return errors.Wrap(err, "write log event")
	}
	return nil
}

// Record appends an event and drops any write error. Used on paths where a
// failing journal must not affect the user-facing operation.
func (l *Logger) Record(event LogEvent) {
	_ = l.Append(event)
}

// Debug starts a diagnostic event at debug level.
func (l *Logger) Debug() *zerolog.Event {
	if l == nil {
		return nil
	}
	return l.zl.Debug().Str("time", time.Now().UTC().Format(time.RFC3339Nano))
}

// Warn starts a diagnostic event at warn level.
func (l *Logger) Warn() *zerolog.Event {
	if l == nil {
		return nil
	}
	return l.zl.Warn().Str("time", time.Now().UTC().Format(time.RFC3339Nano))
}

// ReadAll reads and parses all events from the current log file.
// Returns an empty slice (not an error) if the file does not exist.
// Diagnostic lines without an event name are skipped.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	if l.path == "" {
		return []LogEvent{}, nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, errors.Wrap(err, "open log file")
	}
	defer f.Close()

	events := []LogEvent{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, errors.Wrapf(err, "parse log line %d", lineNum)
		}
		if event.Event == "" {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read log file")
	}

	return events, nil
}

// Tail returns the last n events.
func (l *Logger) Tail(n int) ([]LogEvent, error) {
	events, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// captureWriter remembers the last write error so Append can report it;
// zerolog itself swallows writer errors.
type captureWriter struct {
	w   io.Writer
	mu  sync.Mutex
	err error
}

func (c *captureWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
	}
	return n, err
}

func (c *captureWriter) reset() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

func (c *captureWriter) lastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
