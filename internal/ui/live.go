package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// LiveLine is one row of a LiveDisplay. Key identifies the row so plain
// output prints each row once.
type LiveLine struct {
	Key  string
	Text string
}

// LiveDisplay redraws a block of lines in place on a terminal, or prints
// only new rows and status transitions when the output is not a TTY.
type LiveDisplay struct {
	mu         sync.Mutex
	title      string
	out        io.Writer
	isTTY      bool
	linesDrawn int
	status     string
	printed    map[string]bool
}

// NewLiveDisplay creates a LiveDisplay writing to out.
func NewLiveDisplay(title string, out io.Writer, isTTY bool) *LiveDisplay {
	return &LiveDisplay{
		title:   title,
		out:     out,
		isTTY:   isTTY,
		printed: make(map[string]bool),
	}
}

// Update replaces the displayed status and rows.
func (d *LiveDisplay) Update(status string, lines []LiveLine) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isTTY {
		d.renderTTY(status, lines)
	} else {
		d.renderPlain(status, lines)
	}
	d.status = status
}

// Finish moves the cursor below the display and prints a closing line.
func (d *LiveDisplay) Finish(summary string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isTTY && d.linesDrawn > 0 {
		fmt.Fprint(d.out, "\n")
	}
	if summary != "" {
		fmt.Fprintln(d.out, summary)
	}
}

// renderTTY draws the display using ANSI escape codes for in-place updates.
func (d *LiveDisplay) renderTTY(status string, lines []LiveLine) {
	if d.linesDrawn > 0 {
		fmt.Fprintf(d.out, "\033[%dA", d.linesDrawn)
	}

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("\033[2K\033[1m%s\033[0m  \033[90m[%s]\033[0m\n", d.title, status))
	buf.WriteString("\033[2K\n")
	for _, line := range lines {
		buf.WriteString("\033[2K")
		buf.WriteString(line.Text)
		buf.WriteString("\n")
	}
	// Blank out rows left over from a taller previous frame.
	for i := len(lines) + 2; i < d.linesDrawn; i++ {
		buf.WriteString("\033[2K\n")
	}

	fmt.Fprint(d.out, buf.String())
	if n := len(lines) + 2; n > d.linesDrawn {
		d.linesDrawn = n
	}
}

// renderPlain writes non-TTY output. Only prints on status transitions
// and for rows not seen before.
func (d *LiveDisplay) renderPlain(status string, lines []LiveLine) {
	if status != d.status {
		fmt.Fprintf(d.out, "[%s] %s\n", strings.ToUpper(status), d.title)
	}
	for _, line := range lines {
		if line.Key != "" && d.printed[line.Key] {
			continue
		}
		fmt.Fprintln(d.out, line.Text)
		if line.Key != "" {
			d.printed[line.Key] = true
		}
	}
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", h, m, s)
}
