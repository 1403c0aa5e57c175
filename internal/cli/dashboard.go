// dashboard.go implements "sxconsole dashboard", printing backend health.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/health"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/tui/views"
	"github.com/sxlabs/sxconsole/internal/ui"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show backend health and training status",
		Long: `Print the backend health (uptime, memory store, host resources)
and training status. --watch keeps polling at the configured interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			if !watch {
				snap := health.Fetch(ctx, e.client)
				fmt.Fprint(e.out, dashboardText(snap))
				if snap.Err != nil {
					return errReported
				}
				return nil
			}

			display := ui.NewLiveDisplay("Backend "+e.client.BaseURL(), e.out, tui.IsTTY())
			poller := health.NewPoller(e.client, e.cfg.Dashboard.PollInterval(), func(s health.Snapshot) {
				display.Update(healthStatus(s), dashboardLines(s))
			})
			err = poller.Run(ctx)
			display.Finish("")
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep refreshing until interrupted")
	return cmd
}

func dashboardText(s health.Snapshot) string {
	return views.HealthLines(s) + views.TrainingLines(s)
}

func healthStatus(s health.Snapshot) string {
	switch {
	case s.Err != nil || s.Health == nil:
		return "unreachable"
	case !s.Health.OK:
		return "degraded"
	default:
		return "ok"
	}
}

// dashboardLines keys every row by refresh time so plain output prints
// each refresh in full.
func dashboardLines(s health.Snapshot) []ui.LiveLine {
	stamp := strconv.FormatInt(s.FetchedAt.UnixNano(), 10)
	text := strings.TrimRight(dashboardText(s), "\n")
	rows := strings.Split(text, "\n")
	lines := make([]ui.LiveLine, 0, len(rows))
	for i, row := range rows {
		lines = append(lines, ui.LiveLine{Key: stamp + "/" + strconv.Itoa(i), Text: row})
	}
	return lines
}
