// history.go implements "sxconsole history", showing or clearing the local chat cache.
package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/log"
	"github.com/sxlabs/sxconsole/internal/reconciler"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		clear  bool
		remote int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the local conversation history",
		Long: `Print the conversation kept in the local cache. With --remote N
the last N turns are fetched from the server instead. --clear empties
the local cache; the server-side session is not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if remote > 0 {
				resp, err := e.client.Resume(cmd.Context(), remote)
				if err != nil {
					return err
				}
				if len(resp.Turns) == 0 {
					fmt.Fprintln(e.out, "No server-side history.")
					return nil
				}
				for _, t := range reconciler.FromResume(resp.Turns) {
					printTurn(e.out, t)
				}
				return nil
			}

			cache, err := e.cache()
			if err != nil {
				return err
			}

			if clear {
				if err := cache.Clear(); err != nil {
					return err
				}
				e.logger.Record(log.LogEvent{Event: log.EventCacheCleared, Reason: "cli"})
				fmt.Fprintln(e.out, "Local history cleared.")
				return nil
			}

			st, err := cache.Load()
			if err != nil {
				return err
			}
			if st == nil || len(st.Turns) == 0 {
				fmt.Fprintln(e.out, "No local history.")
				return nil
			}

			fmt.Fprintf(e.out, "%d turns, updated %s\n\n", len(st.Turns), humanize.Time(st.Updated()))
			for _, t := range st.Turns {
				printTurn(e.out, t)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the local history")
	cmd.Flags().IntVar(&remote, "remote", 0, "Fetch the last N turns from the server")
	return cmd
}
