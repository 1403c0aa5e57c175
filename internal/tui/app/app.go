// Package app provides the main TUI application that wires all views together.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sxlabs/sxconsole/internal/health"
	"github.com/sxlabs/sxconsole/internal/log"
	"github.com/sxlabs/sxconsole/internal/telemetry"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/tui/views"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// noticeTTL is how long a notification stays in the status bar.
const noticeTTL = 4 * time.Second

// Session is the reconciler surface the application needs.
type Session interface {
	views.Session
	Hydrate(ctx context.Context) error
}

// Stream is the telemetry aggregator surface the application needs.
type Stream interface {
	Start(ctx context.Context) error
	Stats() telemetry.Stats
}

// Deps holds everything the application drives. Trainer and Stream may be nil.
type Deps struct {
	Session      Session
	Health       health.Client
	Trainer      views.Trainer
	Stream       Stream
	PollInterval time.Duration
	BaseURL      string
	Logger       *log.Logger
}

type ctrlCResetMsg struct{}

type pollMsg struct{}

type clearNoticeMsg struct{ seq int }

// App is the main TUI application that wires all views together.
type App struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	keys   tui.KeyMap

	activeTab    tui.Tab
	width        int
	height       int
	ctrlCPending bool

	notice    ui.Notification
	hasNotice bool
	noticeSeq int
	stream    telemetry.Status

	// View models
	chatView      views.ChatModel
	telemetryView views.TelemetryModel
	dashboardView views.DashboardModel
}

// New creates a new App. opts customize the chat view.
func New(ctx context.Context, deps Deps, opts ...views.ChatOption) *App {
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = health.DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	var stats func() telemetry.Stats
	if deps.Stream != nil {
		stats = deps.Stream.Stats
	}

	const width, height = 80, 24
	return &App{
		deps:          deps,
		ctx:           ctx,
		cancel:        cancel,
		keys:          tui.DefaultKeyMap,
		activeTab:     tui.TabChat,
		width:         width,
		height:        height,
		chatView:      views.NewChatModel(ctx, deps.Session, width, height-4, opts...),
		telemetryView: views.NewTelemetryModel(stats, width),
		dashboardView: views.NewDashboardModel(ctx, deps.Health, deps.Trainer, width),
	}
}

// Close cancels every request the application started.
func (a *App) Close() {
	a.cancel()
}

// ActiveTab returns the visible view.
func (a *App) ActiveTab() tui.Tab {
	return a.activeTab
}

// Init hydrates the conversation, opens the telemetry stream and starts
// the dashboard polling.
func (a *App) Init() tea.Cmd {
	ctx, s := a.ctx, a.deps.Session
	cmds := []tea.Cmd{
		a.chatView.Init(),
		func() tea.Msg {
			return tui.HydratedMsg{Err: s.Hydrate(ctx)}
		},
		a.dashboardView.Refresh(),
		a.schedulePoll(),
		tick(),
	}
	if a.deps.Stream != nil {
		stream, logger := a.deps.Stream, a.deps.Logger
		cmds = append(cmds, func() tea.Msg {
			if err := stream.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("telemetry stream not started")
			}
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.chatView, _ = a.chatView.Update(inner)
		a.telemetryView, _ = a.telemetryView.Update(inner)
		a.dashboardView, _ = a.dashboardView.Update(inner)
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.CtrlC):
			if a.ctrlCPending {
				a.cancel()
				return a, tea.Quit
			}
			a.ctrlCPending = true
			return a, tea.Tick(time.Second, func(time.Time) tea.Msg {
				return ctrlCResetMsg{}
			})
		case key.Matches(msg, a.keys.Tab):
			a.activeTab = a.activeTab.Next()
			return a, nil
		case key.Matches(msg, a.keys.ShiftTab):
			a.activeTab = a.activeTab.Prev()
			return a, nil
		}
		return a, a.updateActive(msg)

	case ctrlCResetMsg:
		a.ctrlCPending = false
		return a, nil

	case tui.NotifyMsg:
		a.notice = msg.Notification
		a.hasNotice = true
		a.noticeSeq++
		seq := a.noticeSeq
		return a, tea.Tick(noticeTTL, func(time.Time) tea.Msg {
			return clearNoticeMsg{seq: seq}
		})

	case clearNoticeMsg:
		if msg.seq == a.noticeSeq {
			a.hasNotice = false
		}
		return a, nil

	case tui.HydratedMsg:
		if msg.Err != nil {
			a.deps.Logger.Warn().Err(msg.Err).Msg("hydration failed")
		}
		a.chatView, cmd = a.chatView.Update(tui.SessionChangedMsg{})
		return a, cmd

	case tui.SessionChangedMsg, tui.SendDoneMsg, tui.FeedbackDoneMsg, spinner.TickMsg:
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case tui.TickMsg:
		a.chatView, _ = a.chatView.Update(msg)
		return a, tick()

	case tui.TelemetryMsg:
		a.stream = msg.Update.Status
		a.telemetryView, cmd = a.telemetryView.Update(msg)
		return a, cmd

	case pollMsg:
		return a, tea.Batch(a.dashboardView.Refresh(), a.schedulePoll())

	case tui.HealthMsg, tui.TrainingDoneMsg:
		a.dashboardView, cmd = a.dashboardView.Update(msg)
		return a, cmd
	}

	return a, a.updateActive(msg)
}

func (a *App) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.activeTab {
	case tui.TabTelemetry:
		a.telemetryView, cmd = a.telemetryView.Update(msg)
	case tui.TabDashboard:
		a.dashboardView, cmd = a.dashboardView.Update(msg)
	default:
		a.chatView, cmd = a.chatView.Update(msg)
	}
	return cmd
}

// View renders the current application state.
func (a *App) View() string {
	var content string
	switch a.activeTab {
	case tui.TabTelemetry:
		content = a.telemetryView.View()
	case tui.TabDashboard:
		content = a.dashboardView.View()
	default:
		content = a.chatView.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderTabBar(),
		"",
		content,
		a.renderStatusBar(),
	)
}

// renderTabBar renders the tab bar with the active tab highlighted.
func (a *App) renderTabBar() string {
	rendered := make([]string, 0, len(tui.Tabs))
	for _, t := range tui.Tabs {
		if t == a.activeTab {
			rendered = append(rendered, tui.ActiveTabStyle.Render(t.String()))
		} else {
			rendered = append(rendered, tui.InactiveTabStyle.Render(t.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (a *App) renderStatusBar() string {
	var text string
	switch {
	case a.ctrlCPending:
		text = "Press ctrl+c again to quit"
	case a.hasNotice:
		text = ui.Format(a.notice)
	default:
		parts := []string{"telemetry " + a.stream.String()}
		if a.deps.BaseURL != "" {
			parts = append(parts, a.deps.BaseURL)
		}
		parts = append(parts, "tab switch view")
		text = strings.Join(parts, " · ")
	}
	return tui.StatusBarStyle.Width(a.width).Render(text)
}

func (a *App) schedulePoll() tea.Cmd {
	return tea.Tick(a.deps.PollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tui.TickMsg{}
	})
}
