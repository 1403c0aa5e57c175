// Package views provides the TUI view components for sxconsole.
package views

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"

	"github.com/sxlabs/sxconsole/internal/reconciler"
	"github.com/sxlabs/sxconsole/internal/session"
	"github.com/sxlabs/sxconsole/internal/tui"
)

// Session is the part of the reconciler the chat view drives.
type Session interface {
	Snapshot() reconciler.Snapshot
	Send(ctx context.Context, text string) (*session.Turn, error)
	Touch()
	Feedback(ctx context.Context, rating int) error
	Clear() error
}

// ChatOption customizes a ChatModel.
type ChatOption func(*ChatModel)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) ChatOption {
	return func(m *ChatModel) { m.copyText = write }
}

// WithNow replaces the clock used for the admin countdown.
func WithNow(now func() time.Time) ChatOption {
	return func(m *ChatModel) { m.now = now }
}

// WithMarkdownStyle selects the glamour style for assistant replies.
func WithMarkdownStyle(style string) ChatOption {
	return func(m *ChatModel) { m.mdStyle = style }
}

// ============================================================================
// ChatModel
// ============================================================================

// ChatModel is the view model for the conversation screen.
type ChatModel struct {
	ctx      context.Context
	session  Session
	keys     tui.KeyMap
	snap     reconciler.Snapshot
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	mdStyle  string
	copyText func(string) error
	now      func() time.Time
	notice   string
	width    int
	height   int
}

// NewChatModel creates a ChatModel bound to s. ctx scopes every request the
// view starts.
func NewChatModel(ctx context.Context, s Session, width, height int, opts ...ChatOption) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Type your message... (Enter to send)"
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline = tui.DefaultKeyMap.NewLine
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = tui.TitleStyle

	m := ChatModel{
		ctx:      ctx,
		session:  s,
		keys:     tui.DefaultKeyMap,
		snap:     s.Snapshot(),
		textarea: ta,
		viewport: viewport.New(width, 10),
		spinner:  sp,
		mdStyle:  "dark",
		copyText: clipboard.WriteAll,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.setSize(width, height)
	return m
}

// Init returns the initial command for the chat view.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles messages for the chat view.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Send):
			return m.send()

		case key.Matches(msg, m.keys.ThumbsUp):
			return m, m.feedback(1)

		case key.Matches(msg, m.keys.ThumbsDown):
			return m, m.feedback(-1)

		case key.Matches(msg, m.keys.Clear):
			if err := m.session.Clear(); err != nil {
				m.notice = noticeFor(err)
			} else {
				m.notice = ""
			}
			m.refresh()
			return m, nil

		case key.Matches(msg, m.keys.Copy):
			m.copyLast()
			return m, nil

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		m.session.Touch()
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	case tui.SessionChangedMsg, tui.TickMsg:
		m.refresh()
		return m, nil

	case tui.SendDoneMsg:
		if msg.Err != nil {
			m.notice = noticeFor(msg.Err)
		}
		m.refresh()
		return m, nil

	case tui.FeedbackDoneMsg:
		if errors.Is(msg.Err, reconciler.ErrNoAssistantTurn) {
			m.notice = noticeFor(msg.Err)
		}
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m ChatModel) send() (ChatModel, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return m, nil
	}
	if m.snap.Busy {
		m.notice = noticeFor(reconciler.ErrBusy)
		return m, nil
	}
	if m.snap.Mode == reconciler.ModeHydrating {
		m.notice = noticeFor(reconciler.ErrHydrating)
		return m, nil
	}

	m.textarea.Reset()
	m.notice = ""
	ctx, s := m.ctx, m.session
	return m, func() tea.Msg {
		_, err := s.Send(ctx, text)
		return tui.SendDoneMsg{Err: err}
	}
}

func (m ChatModel) feedback(rating int) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return tui.FeedbackDoneMsg{Rating: rating, Err: s.Feedback(ctx, rating)}
	}
}

func (m *ChatModel) copyLast() {
	last, ok := session.LastAssistant(m.snap.Turns)
	if !ok {
		m.notice = noticeFor(reconciler.ErrNoAssistantTurn)
		return
	}
	if err := m.copyText(last.Text); err != nil {
		m.notice = "Copy failed: " + err.Error()
		return
	}
	m.notice = "Reply copied to clipboard"
}

// refresh reloads the snapshot and re-renders the transcript.
func (m *ChatModel) refresh() {
	atBottom := m.viewport.AtBottom()
	m.snap = m.session.Snapshot()
	m.viewport.SetContent(m.formatTurns())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *ChatModel) setSize(width, height int) {
	m.width = width
	m.height = height

	vpHeight := height - 12
	if vpHeight < 5 {
		vpHeight = 5
	}
	vpWidth := width - 4
	if vpWidth < 20 {
		vpWidth = 20
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(vpWidth)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.mdStyle),
		glamour.WithWordWrap(vpWidth-2),
	)
	if err == nil {
		m.renderer = r
	}
	m.viewport.SetContent(m.formatTurns())
	m.viewport.GotoBottom()
}

// View renders the chat view.
func (m ChatModel) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.snap.Busy:
		b.WriteString(m.spinner.View() + " " + tui.DimStyle.Render("Waiting for reply..."))
	case m.notice != "":
		b.WriteString(tui.WarningStyle.Render(m.notice))
	}
	b.WriteString("\n")

	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(tui.DimStyle.Render(helpLine(m.keys.Send, m.keys.NewLine, m.keys.ThumbsUp, m.keys.ThumbsDown, m.keys.Copy, m.keys.Clear)))

	return b.String()
}

func (m ChatModel) header() string {
	parts := []string{tui.TitleStyle.Render("Conversation")}

	switch m.snap.Mode {
	case reconciler.ModeHydrating:
		parts = append(parts, tui.DimStyle.Render("loading history..."))
	case reconciler.ModeAdmin:
		parts = append(parts, tui.AdminBadgeStyle.Render("ADMIN "+m.countdown()))
	}
	if m.snap.Diverged {
		parts = append(parts, tui.WarningStyle.Render("! local history may be out of date"))
	}
	return strings.Join(parts, "  ")
}

// countdown renders the time left before admin mode expires.
func (m ChatModel) countdown() string {
	if m.snap.IdleDeadline.IsZero() {
		return "paused"
	}
	left := m.snap.IdleDeadline.Sub(m.now()).Seconds()
	secs := int(math.Ceil(left))
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%ds", secs)
}

// formatTurns renders the transcript.
func (m ChatModel) formatTurns() string {
	if len(m.snap.Turns) == 0 {
		if m.snap.Mode == reconciler.ModeHydrating {
			return ""
		}
		return tui.DimStyle.Render("No messages yet. Say hello!")
	}

	var b strings.Builder
	for i, t := range m.snap.Turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.Role == session.RoleUser {
			b.WriteString(tui.UserStyle.Render("You: "))
			b.WriteString(t.Text)
			continue
		}

		b.WriteString(tui.AssistantStyle.Render("SentienceX:"))
		b.WriteString("\n")
		b.WriteString(m.renderMarkdown(t.Text))
		if meta := MetaLine(t); meta != "" {
			b.WriteString("\n")
			b.WriteString(tui.DimStyle.Render(meta))
		}
	}
	return b.String()
}

func (m ChatModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// MetaLine joins the non-empty reply annotations as "tone · brevity · template".
func MetaLine(t session.Turn) string {
	var parts []string
	for _, s := range []string{t.Tone, t.Brevity, t.TemplateID} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " · ")
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, reconciler.ErrBusy):
		return "Still waiting for the previous reply"
	case errors.Is(err, reconciler.ErrHydrating):
		return "Conversation is still loading"
	case errors.Is(err, reconciler.ErrNoAssistantTurn):
		return "No reply to rate yet"
	case errors.Is(err, reconciler.ErrEmptyMessage):
		return ""
	default:
		return err.Error()
	}
}

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
