// analyze.go implements the simple-mode "analyze" and "retrain" commands.
package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var audioPath string

	cmd := &cobra.Command{
		Use:   "analyze <text>",
		Short: "Analyze text with the simple-mode endpoint",
		Long: `Send text to the simple-mode analysis endpoint and print the
response with its sentiment, threat and sarcasm readings. Requires a
bearer token (--token or SX_AUTH_TOKEN). With --audio the spoken reply
is written to a WAV file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := e.client.Analyze(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(e.out, resp.Response)
			fmt.Fprintf(e.out, "  sentiment  %s\n", reading(resp.Sentiment))
			fmt.Fprintf(e.out, "  threat     %s\n", reading(resp.Threat))
			fmt.Fprintf(e.out, "  sarcasm    %s\n", reading(resp.Sarcasm))

			if audioPath == "" || resp.Audio == "" {
				return nil
			}
			wav, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return errors.Wrap(err, "decoding audio")
			}
			if err := os.WriteFile(audioPath, wav, 0644); err != nil {
				return errors.Wrap(err, "writing audio")
			}
			fmt.Fprintf(e.out, "Audio written to %s\n", audioPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Write the spoken reply to this WAV file")
	return cmd
}

// reading renders a loosely typed analysis value.
func reading(v any) string {
	if v == nil {
		return "n/a"
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return fmt.Sprintf("%.2f", f)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

func newRetrainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Ask the simple-mode backend to retrain its models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := e.client.Retrain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, resp.Msg)
			return nil
		},
	}
}
