package tui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Program wraps the model in a tea.Program using the alternate screen.
func Program(m tea.Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}

// Run starts p when stdout is a TTY. Otherwise fallback guides the user to
// the non-interactive commands.
func Run(p *tea.Program, fallback *FallbackRunner) error {
	if !IsTTY() {
		return fallback.Run("")
	}
	_, err := p.Run()
	return err
}
