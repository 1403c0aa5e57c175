// send.go implements the one-shot "sxconsole send" command.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/reconciler"
	"github.com/sxlabs/sxconsole/internal/session"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/tui/views"
	"github.com/sxlabs/sxconsole/internal/ui"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Long: `Send a single message to the companion and print its reply.
The conversation is kept in the same local history as the console.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			printer := e.printer()
			rec, err := e.reconciler(printer, nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := rec.Hydrate(ctx); err != nil {
				return err
			}

			reply, err := rec.Send(ctx, strings.Join(args, " "))
			switch {
			case errors.Is(err, reconciler.ErrEmptyMessage):
				return errors.New("message is empty")
			case err != nil:
				// The reconciler already notified the failure.
				return errReported
			}

			printTurn(e.out, *reply)
			if rec.Snapshot().Mode == reconciler.ModeAdmin {
				ui.Warn(printer, "Admin mode ends when this command exits. Use 'sxconsole chat' for an admin session.")
			}
			return nil
		},
	}
}

// printTurn writes one turn in transcript form.
func printTurn(w io.Writer, t session.Turn) {
	if t.Role == session.RoleUser {
		fmt.Fprintf(w, "%s %s\n", tui.UserStyle.Render("You:"), t.Text)
		return
	}
	fmt.Fprintf(w, "%s %s\n", tui.AssistantStyle.Render("SentienceX:"), t.Text)
	if meta := views.MetaLine(t); meta != "" {
		fmt.Fprintf(w, "  %s\n", tui.DimStyle.Render(meta))
	}
}
