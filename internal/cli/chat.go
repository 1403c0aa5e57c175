// chat.go implements the interactive console and the profile gate in front of it.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/profile"
	"github.com/sxlabs/sxconsole/internal/telemetry"
	"github.com/sxlabs/sxconsole/internal/training"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/tui/app"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive console",
		Long: `Open the full-screen console with the conversation, the live
telemetry chart and the backend dashboard. Tab switches between views.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	e, err := opts.load(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if !tui.IsTTY() {
		return tui.NewFallbackRunner(e.out, e.cfg.API.BaseURL).Run("")
	}

	ctx := cmd.Context()
	if !profile.HasProfile(ctx, e.client, e.logger) {
		fmt.Fprintln(e.out, "No profile found. Let's set one up first.")
		if err := runSetupForm(ctx, e, profileFlags{}); err != nil {
			return err
		}
	}

	bridge := &tui.Bridge{}
	rec, err := e.reconciler(bridge, func() { bridge.Send(tui.SessionChangedMsg{}) })
	if err != nil {
		return err
	}
	agg := e.aggregator(func(u telemetry.Update) { bridge.Send(tui.TelemetryMsg{Update: u}) })

	a := app.New(ctx, app.Deps{
		Session:      rec,
		Health:       e.client,
		Trainer:      training.NewRunner(e.client, bridge, e.logger),
		Stream:       agg,
		PollInterval: e.cfg.Dashboard.PollInterval(),
		BaseURL:      e.client.BaseURL(),
		Logger:       e.logger,
	})
	defer a.Close()

	p := tui.Program(a)
	bridge.Attach(p)
	return tui.Run(p, tui.NewFallbackRunner(e.out, e.cfg.API.BaseURL))
}
