package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sxlabs/sxconsole/internal/ui"
)

// Tab identifies the active view.
type Tab int

const (
	TabChat Tab = iota
	TabTelemetry
	TabDashboard
)

// Tabs lists the views in display order.
var Tabs = []Tab{TabChat, TabTelemetry, TabDashboard}

func (t Tab) String() string {
	switch t {
	case TabTelemetry:
		return "Telemetry"
	case TabDashboard:
		return "Dashboard"
	default:
		return "Chat"
	}
}

// Next returns the following tab, wrapping around.
func (t Tab) Next() Tab {
	return Tabs[(int(t)+1)%len(Tabs)]
}

// Prev returns the previous tab, wrapping around.
func (t Tab) Prev() Tab {
	return Tabs[(int(t)+len(Tabs)-1)%len(Tabs)]
}

// Bridge forwards messages from callbacks into a running program. Send never
// blocks, so callbacks fired from inside Update cannot deadlock the event
// loop. Messages sent before Attach are dropped.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach sets the program that receives messages.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

// Send delivers msg to the attached program, if any.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		go p.Send(msg)
	}
}

// Notify implements ui.Notifier.
func (b *Bridge) Notify(n ui.Notification) {
	b.Send(NotifyMsg{Notification: n})
}
