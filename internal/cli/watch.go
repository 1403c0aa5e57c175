// watch.go implements "sxconsole watch", following the live telemetry stream.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/telemetry"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// latestUpdate keeps only the newest aggregator update. Producers never block.
type latestUpdate struct {
	mu     sync.Mutex
	update telemetry.Update
	ready  chan struct{}
}

func newLatestUpdate() *latestUpdate {
	return &latestUpdate{ready: make(chan struct{}, 1)}
}

func (l *latestUpdate) put(u telemetry.Update) {
	l.mu.Lock()
	l.update = u
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestUpdate) get() telemetry.Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.update
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live sentiment and threat telemetry",
		Long: `Connect to the backend event stream and show the rolling window of
sentiment and threat samples. Runs until interrupted, the stream gives
up reconnecting, or --duration elapses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			latest := newLatestUpdate()
			agg := e.aggregator(latest.put)
			display := ui.NewLiveDisplay("Telemetry "+e.client.StreamURL(e.cfg.Telemetry.Path), e.out, tui.IsTTY())
			if err := agg.Start(ctx); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					agg.Close()
					display.Finish(statsSummary(agg.Stats()))
					return nil
				case <-latest.ready:
					u := latest.get()
					display.Update(u.Status.String(), SampleLines(u))
					if u.Status == telemetry.StatusGaveUp {
						display.Finish(statsSummary(agg.Stats()))
						return errors.New("telemetry stream offline: gave up reconnecting")
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	return cmd
}

// SampleLines renders the window, one sample per line, marking hot values.
func SampleLines(u telemetry.Update) []ui.LiveLine {
	lines := make([]ui.LiveLine, 0, len(u.Window))
	for _, s := range u.Window {
		lines = append(lines, ui.LiveLine{
			Key: strconv.FormatInt(s.CapturedAt.UnixNano(), 10),
			Text: fmt.Sprintf("%s  positive %s  negative %s  threat %s",
				s.Label(),
				hot(s.Positive, telemetry.HotPositive),
				hot(s.Negative, telemetry.HotNegative),
				hot(s.Threat, telemetry.HotThreat)),
		})
	}
	return lines
}

func hot(v, threshold float64) string {
	s := fmt.Sprintf("%.2f", v)
	if v > threshold {
		return s + "!"
	}
	return s + " "
}

func statsSummary(st telemetry.Stats) string {
	return fmt.Sprintf("received %d · applied %d · dropped %d · reconnects %d",
		st.Received, st.Applied, st.Dropped, st.Reconnects)
}
