// log.go implements the "sxconsole log" command for reading the event journal.
package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/log"
)

func newLogCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent client events",
		Long: `Display the most recent events from .sxconsole/log.jsonl: hydration,
sends, admin transitions, telemetry reconnects and training runs.
Admin-mode message content is never recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			events, err := e.logger.Tail(limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(e.out, "No events recorded yet.")
				return nil
			}
			for _, ev := range events {
				fmt.Fprintln(e.out, formatEvent(ev))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "lines", "n", 20, "Number of events to show (0 for all)")
	return cmd
}

// formatEvent renders one journal event on a single line.
func formatEvent(ev log.LogEvent) string {
	parts := []string{fmt.Sprintf("%-14s %-24s", humanize.Time(ev.Time), ev.Event)}
	if ev.Mode != "" {
		parts = append(parts, "mode="+ev.Mode)
	}
	if ev.Turns != 0 {
		parts = append(parts, fmt.Sprintf("turns=%d", ev.Turns))
	}
	if ev.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", ev.Status))
	}
	if ev.Attempt != 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", ev.Attempt))
	}
	if ev.Reason != "" {
		parts = append(parts, "reason="+ev.Reason)
	}
	if ev.DurationMs != 0 {
		parts = append(parts, fmt.Sprintf("took=%dms", ev.DurationMs))
	}
	if ev.Error != "" {
		parts = append(parts, "error="+ev.Error)
	}
	return strings.Join(parts, " ")
}
