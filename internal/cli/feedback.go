// feedback.go implements "sxconsole feedback", rating the latest reply.
package cli

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/reconciler"
)

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "feedback <up|down>",
		Short:     "Rate the most recent reply",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := parseRating(args[0])
			if err != nil {
				return err
			}

			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			rec, err := e.reconciler(e.printer(), nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := rec.Hydrate(ctx); err != nil {
				return err
			}

			err = rec.Feedback(ctx, rating)
			switch {
			case errors.Is(err, reconciler.ErrNoAssistantTurn):
				return errors.New("no reply to rate yet")
			case err != nil:
				return errReported
			}
			return nil
		},
	}
}

// parseRating maps a user answer to +1 or -1.
func parseRating(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "+", "+1", "1", "good", "yes":
		return 1, nil
	case "down", "-", "-1", "bad", "no":
		return -1, nil
	}
	return 0, errors.Errorf("unknown rating %q: use up or down", s)
}
