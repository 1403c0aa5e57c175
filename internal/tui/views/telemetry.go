package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sxlabs/sxconsole/internal/telemetry"
	"github.com/sxlabs/sxconsole/internal/tui"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// barWidth is the number of cells in a full-scale bar.
const barWidth = 20

// TelemetryModel is the view model for the live sentiment and threat chart.
type TelemetryModel struct {
	update telemetry.Update
	stats  func() telemetry.Stats
	width  int
}

// NewTelemetryModel creates a TelemetryModel. stats may be nil.
func NewTelemetryModel(stats func() telemetry.Stats, width int) TelemetryModel {
	return TelemetryModel{stats: stats, width: width}
}

// Update handles messages for the telemetry view.
func (m TelemetryModel) Update(msg tea.Msg) (TelemetryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.TelemetryMsg:
		m.update = msg.Update
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

// View renders the telemetry view.
func (m TelemetryModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render("Live telemetry"))
	b.WriteString("  ")
	b.WriteString(StatusLabel(m.update.Status))
	b.WriteString("\n\n")

	win := m.update.Window
	if len(win) == 0 {
		b.WriteString(tui.DimStyle.Render("No samples yet."))
		b.WriteString("\n")
	} else {
		for _, s := range []telemetry.Series{telemetry.SeriesPositive, telemetry.SeriesNegative, telemetry.SeriesThreat} {
			b.WriteString(SeriesLine(s, win, m.update.Heat))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(tui.DimStyle.Render(fmt.Sprintf("%s → %s  (%d samples)",
			win[0].Label(), win[len(win)-1].Label(), len(win))))
		b.WriteString("\n")
	}

	if m.stats != nil {
		st := m.stats()
		b.WriteString(tui.DimStyle.Render(fmt.Sprintf("received %d · applied %d · dropped %d · reconnects %d",
			st.Received, st.Applied, st.Dropped, st.Reconnects)))
		b.WriteString("\n")
	}
	return b.String()
}

// StatusLabel renders the connection status in a colour matching its
// severity.
func StatusLabel(s telemetry.Status) string {
	switch s {
	case telemetry.StatusOpen:
		return tui.SuccessStyle.Render("● " + s.String())
	case telemetry.StatusConnecting, telemetry.StatusReconnecting:
		return tui.WarningStyle.Render("● " + s.String())
	case telemetry.StatusGaveUp:
		return tui.ErrorStyle.Render("● " + s.String())
	default:
		return tui.DimStyle.Render("● " + s.String())
	}
}

// SeriesLine renders one series as a label, a bar for the latest value and
// a sparkline over the window, coloured by the window's heat.
func SeriesLine(s telemetry.Series, window []telemetry.Sample, heat telemetry.Heat) string {
	if len(window) == 0 {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(heat.Color(s)))
	last := window[len(window)-1].Value(s)

	values := make([]float64, len(window))
	for i, sample := range window {
		values[i] = sample.Value(s)
	}

	filled := int(last*barWidth + 0.5)
	bar := style.Render(strings.Repeat("█", filled)) +
		tui.ProgressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	label := fmt.Sprintf("%-9s", s.String())
	if heat.Hot(s) {
		label = style.Bold(true).Render(label)
	}
	return fmt.Sprintf("%s %s %.2f  %s", label, bar, last, style.Render(Sparkline(values)))
}

// Sparkline renders values in [0,1] as block characters.
func Sparkline(values []float64) string {
	out := make([]rune, len(values))
	top := len(sparkRunes) - 1
	for i, v := range values {
		idx := int(v*float64(top) + 0.5)
		if idx < 0 {
			idx = 0
		}
		if idx > top {
			idx = top
		}
		out[i] = sparkRunes[idx]
	}
	return string(out)
}
