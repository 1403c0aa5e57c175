// Package ui provides user-visible notifications and plain terminal output
// for the CLI commands.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelOK
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient message for the user.
type Notification struct {
	Level Level
	Text  string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})

// OrDiscard returns n, or Discard when n is nil.
func OrDiscard(n Notifier) Notifier {
	if n == nil {
		return Discard
	}
	return n
}

// Error notifies err's message, or fallback when err has no text.
func Error(n Notifier, err error, fallback string) {
	text := fallback
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		text = err.Error()
	}
	OrDiscard(n).Notify(Notification{Level: LevelError, Text: text})
}

// OK notifies a success.
func OK(n Notifier, text string) {
	OrDiscard(n).Notify(Notification{Level: LevelOK, Text: text})
}

// Info notifies neutral information.
func Info(n Notifier, text string) {
	OrDiscard(n).Notify(Notification{Level: LevelInfo, Text: text})
}

// Warn notifies a warning.
func Warn(n Notifier, text string) {
	OrDiscard(n).Notify(Notification{Level: LevelWarn, Text: text})
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Printer writes notifications as styled lines.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Notify implements Notifier.
func (p *Printer) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, Format(n))
}

// Format renders a notification as a single styled line.
func Format(n Notification) string {
	switch n.Level {
	case LevelOK:
		return okStyle.Render("✓ " + n.Text)
	case LevelWarn:
		return warnStyle.Render("! " + n.Text)
	case LevelError:
		return errorStyle.Render("✗ " + n.Text)
	default:
		return infoStyle.Render("• " + n.Text)
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// All returns the notifications received so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}
