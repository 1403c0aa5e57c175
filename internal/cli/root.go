// Package cli defines Cobra command definitions for the sxconsole CLI.
// This file contains the root command, global flags, and help output.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/tui"
)

var version = "dev" // set via ldflags at build time

// errReported ends a command whose failure was already shown to the user.
var errReported = errors.New("failure already reported")

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	dir       string
	apiBase   string
	token     string
	debug     bool
	ephemeral bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sxconsole",
		Short: "Terminal client for the SentienceX companion API",
		Long: `sxconsole talks to a SentienceX backend: chat with the companion,
follow the live sentiment and threat telemetry, check backend health,
and trigger training runs.

Without a subcommand it opens the interactive console when stdout is a
terminal, and prints this help otherwise.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tui.IsTTY() {
				return cmd.Help()
			}
			return runChat(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.dir, "dir", "", "Project directory holding .sxconsole/ (default: current directory)")
	pf.StringVar(&opts.apiBase, "api-base", "", "Backend base URL (overrides config and SX_API_BASE)")
	pf.StringVar(&opts.token, "token", "", "Bearer token for the analysis endpoints (overrides SX_AUTH_TOKEN)")
	pf.BoolVar(&opts.debug, "debug", false, "Print diagnostic logs to stderr")
	pf.BoolVar(&opts.ephemeral, "ephemeral", false, "Keep chat history in memory only")

	cmd.AddCommand(
		newChatCmd(opts),
		newSendCmd(opts),
		newHistoryCmd(opts),
		newFeedbackCmd(opts),
		newWatchCmd(opts),
		newDashboardCmd(opts),
		newTrainCmd(opts),
		newSetupCmd(opts),
		newAnalyzeCmd(opts),
		newRetrainCmd(opts),
		newLogCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
