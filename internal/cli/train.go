// train.go implements "sxconsole train status|run".
package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/training"
)

func newTrainCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Inspect or trigger backend training",
		Long: `Training endpoints need an admin session. Enter admin mode in the
console first by sending admin:<your_token>.`,
	}
	cmd.AddCommand(newTrainStatusCmd(opts), newTrainRunCmd(opts))
	return cmd
}

func newTrainStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the training data and last runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			runner := training.NewRunner(e.client, e.printer(), e.logger)
			st, err := runner.Status(cmd.Context())
			if err != nil {
				return errReported
			}

			fmt.Fprintf(e.out, "Train dir:     %s\n", st.TrainDir)
			fmt.Fprintf(e.out, "Data dir:      %s\n", st.DataDir)
			fmt.Fprintf(e.out, "Tracked files: %d\n", st.TrackedFiles)
			names := make([]string, 0, len(st.LastRuns))
			for name := range st.LastRuns {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(e.out, "  %-16s %v\n", name, st.LastRuns[name])
			}
			return nil
		},
	}
}

func newTrainRunCmd(opts *rootOptions) *cobra.Command {
	var (
		modules   []string
		forceFull bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run training pipelines",
		Long: fmt.Sprintf(`Run the named training modules, or all of them when --modules is
omitted: %s.`, strings.Join(training.DefaultModules, ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			runner := training.NewRunner(e.client, e.printer(), e.logger)
			res, err := runner.Run(cmd.Context(), modules, forceFull)
			if err != nil {
				return errReported
			}
			keys := make([]string, 0, len(res.Result))
			for k := range res.Result {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(e.out, "  %-16s %v\n", k, res.Result[k])
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&modules, "modules", nil, "Comma-separated modules to run")
	cmd.Flags().BoolVar(&forceFull, "full", false, "Retrain from scratch instead of incrementally")
	return cmd
}
