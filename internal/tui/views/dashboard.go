package views

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/health"
	"github.com/sxlabs/sxconsole/internal/training"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// Trainer is the part of training.Runner the dashboard drives.
type Trainer interface {
	Running() bool
	Run(ctx context.Context, modules []string, forceFull bool) (*api.TrainingRunResponse, error)
}

// DashboardModel is the view model for the health and training screen.
type DashboardModel struct {
	ctx       context.Context
	client    health.Client
	trainer   Trainer
	keys      tui.KeyMap
	snap      health.Snapshot
	loaded    bool
	forceFull bool
	width     int
}

// NewDashboardModel creates a DashboardModel. trainer may be nil to hide
// the training controls.
func NewDashboardModel(ctx context.Context, c health.Client, trainer Trainer, width int) DashboardModel {
	return DashboardModel{
		ctx:     ctx,
		client:  c,
		trainer: trainer,
		keys:    tui.DefaultKeyMap,
		width:   width,
	}
}

// Refresh fetches a new snapshot.
func (m DashboardModel) Refresh() tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		return tui.HealthMsg{Snapshot: health.Fetch(ctx, c)}
	}
}

// Update handles messages for the dashboard view.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.HealthMsg:
		m.snap = msg.Snapshot
		m.loaded = true

	case tui.TrainingDoneMsg:
		return m, m.Refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Refresh()
		case key.Matches(msg, m.keys.Full):
			m.forceFull = !m.forceFull
		case key.Matches(msg, m.keys.Train):
			return m, m.train()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m DashboardModel) train() tea.Cmd {
	if m.trainer == nil || m.trainer.Running() {
		return nil
	}
	ctx, t, full := m.ctx, m.trainer, m.forceFull
	return func() tea.Msg {
		_, err := t.Run(ctx, nil, full)
		return tui.TrainingDoneMsg{Err: err}
	}
}

// View renders the dashboard view.
func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("Backend health"))
	b.WriteString("\n\n")

	if !m.loaded {
		b.WriteString(tui.DimStyle.Render("Loading..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(HealthLines(m.snap))

	if m.trainer != nil {
		b.WriteString("\n")
		b.WriteString(tui.TitleStyle.Render("Training"))
		b.WriteString("\n")
		b.WriteString(TrainingLines(m.snap))
		full := "off"
		if m.forceFull {
			full = "on"
		}
		state := tui.IconIdle + " idle"
		if m.trainer.Running() {
			state = tui.IconPending + " running"
		}
		b.WriteString(fmt.Sprintf("  modules     %s\n", strings.Join(training.DefaultModules, ", ")))
		b.WriteString(fmt.Sprintf("  force full  %s\n", full))
		b.WriteString(fmt.Sprintf("  run         %s\n", state))
	}

	b.WriteString("\n")
	b.WriteString(tui.DimStyle.Render(helpLine(m.keys.Refresh, m.keys.Train, m.keys.Full)))
	return b.String()
}

// HealthLines renders the health part of a snapshot.
func HealthLines(s health.Snapshot) string {
	var b strings.Builder
	updated := ""
	if !s.FetchedAt.IsZero() {
		updated = tui.DimStyle.Render("  updated " + s.FetchedAt.Format("15:04:05"))
	}

	if s.Err != nil || s.Health == nil {
		msg := "unreachable"
		if s.Err != nil {
			msg += ": " + s.Err.Error()
		}
		b.WriteString(fmt.Sprintf("  %s %s%s\n", tui.IconFailed, tui.ErrorStyle.Render(msg), updated))
		return b.String()
	}

	h := s.Health
	status := tui.IconOK + " " + tui.SuccessStyle.Render("ok")
	if !h.OK {
		status = tui.IconFailed + " " + tui.ErrorStyle.Render("degraded")
	}
	b.WriteString(fmt.Sprintf("  %s%s\n", status, updated))
	b.WriteString(fmt.Sprintf("  uptime      %s\n", ui.FormatDuration(time.Duration(h.UptimeSec*float64(time.Second)))))
	if h.Locale != "" {
		b.WriteString(fmt.Sprintf("  locale      %s\n", h.Locale))
	}
	b.WriteString(fmt.Sprintf("  memory      %d stm turns · %d facts · %d topics · %d episodes · %d docs\n",
		h.Memory.STMTurns, h.Memory.Facts, h.Memory.Topics, h.Memory.Episodes, h.Memory.IndexDocs))

	r := h.Resources
	b.WriteString(fmt.Sprintf("  cpu         %s\n", optional(r.CPUPercent, "%.0f%%")))
	b.WriteString(fmt.Sprintf("  mem         %s\n", optional(r.MemPercent, "%.0f%%")))
	rss := "n/a"
	if r.RSSMB != nil {
		rss = humanize.IBytes(uint64(*r.RSSMB * 1024 * 1024))
	}
	b.WriteString(fmt.Sprintf("  rss         %s\n", rss))
	if r.TempC != nil {
		b.WriteString(fmt.Sprintf("  temp        %.0f°C\n", *r.TempC))
	}
	if r.GPUUtilPercent != nil || r.GPUTempC != nil {
		b.WriteString(fmt.Sprintf("  gpu         %s · %s\n", optional(r.GPUUtilPercent, "%.0f%%"), optional(r.GPUTempC, "%.0f°C")))
	}
	return b.String()
}

// TrainingLines renders the training part of a snapshot.
func TrainingLines(s health.Snapshot) string {
	if s.TrainingErr != nil {
		if api.IsUnauthorized(s.TrainingErr) {
			return "  " + tui.WarningStyle.Render(training.AdminHint) + "\n"
		}
		return "  " + tui.DimStyle.Render("status unavailable (is training enabled on the API?)") + "\n"
	}
	if s.Training == nil {
		return ""
	}

	var b strings.Builder
	st := s.Training
	b.WriteString(fmt.Sprintf("  tracked     %d files\n", st.TrackedFiles))
	if st.DataDir != "" {
		b.WriteString(fmt.Sprintf("  data dir    %s\n", st.DataDir))
	}
	names := make([]string, 0, len(st.LastRuns))
	for name := range st.LastRuns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(fmt.Sprintf("  last run    %s: %v\n", name, st.LastRuns[name]))
	}
	return b.String()
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
