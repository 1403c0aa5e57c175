package tui

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrMessageRequired is returned when a message is required but not provided.
var ErrMessageRequired = errors.New("message required in non-interactive mode")

// FallbackRunner handles non-TTY execution by guiding users to CLI commands.
type FallbackRunner struct {
	out     io.Writer
	baseURL string
}

// NewFallbackRunner creates a new FallbackRunner.
func NewFallbackRunner(out io.Writer, baseURL string) *FallbackRunner {
	return &FallbackRunner{out: out, baseURL: baseURL}
}

// Run prints guidance for non-interactive use. message is the text the user
// tried to send, if any.
func (f *FallbackRunner) Run(message string) error {
	fmt.Fprintf(f.out, "Non-TTY environment detected (backend %s).\n", f.baseURL)

	if message == "" {
		fmt.Fprintln(f.out, "Use 'sxconsole send <message>' to chat or 'sxconsole watch' to follow telemetry.")
		return ErrMessageRequired
	}

	fmt.Fprintf(f.out, "Use 'sxconsole send %q' to send it without the interactive view.\n", message)
	return nil
}
