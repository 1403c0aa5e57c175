// setup.go implements the "sxconsole setup" first-run profile form.
package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/profile"
	"github.com/sxlabs/sxconsole/internal/tui"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// profileFlags holds values given on the command line. A complete set
// skips the interactive form.
type profileFlags struct {
	name     string
	dob      string
	location string
}

func (f profileFlags) complete() bool {
	return f.name != "" && f.dob != "" && f.location != ""
}

func newSetupCmd(opts *rootOptions) *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create or update your profile",
		Long: `Store your name, date of birth and location on the backend.
The companion asks for a profile before the first conversation.

Pass --name, --dob and --location to skip the interactive form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return runSetupForm(cmd.Context(), e, flags)
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "Your name")
	cmd.Flags().StringVar(&flags.dob, "dob", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.location, "location", "", "Where you live")
	return cmd
}

// runSetupForm collects a profile, interactively unless flags are
// complete, and saves it.
func runSetupForm(ctx context.Context, e *env, flags profileFlags) error {
	p := api.Profile{Name: flags.name, DOB: flags.dob, Location: flags.location}

	if !flags.complete() {
		if !tui.IsTTY() {
			return errors.New("profile incomplete: pass --name, --dob and --location")
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Name").
					Value(&p.Name).
					Validate(profile.ValidateName),
				huh.NewInput().
					Title("Date of birth").
					Placeholder(profile.DOBLayout).
					Value(&p.DOB).
					Validate(profile.ValidateDOB),
				huh.NewInput().
					Title("Location").
					Value(&p.Location).
					Validate(profile.ValidateLocation),
			),
		)
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(e.out, "Aborted.")
				return errReported
			}
			return errors.Wrap(err, "profile form")
		}
	}

	printer := e.printer()
	if err := profile.Save(ctx, e.client, p); err != nil {
		var fe *profile.FieldError
		if errors.As(err, &fe) {
			return err
		}
		ui.Error(printer, err, "Failed to save profile")
		return errReported
	}
	ui.OK(printer, "Profile saved")
	return nil
}
