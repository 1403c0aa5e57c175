// config.go implements "sxconsole config init|show".
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sxlabs/sxconsole/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage .sxconsole/config.yaml",
	}
	cmd.AddCommand(newConfigInitCmd(opts), newConfigShowCmd(opts))
	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Create .sxconsole/config.yaml with default settings. --api-base is
written into the new file when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(opts)
			if err != nil {
				return err
			}

			path := filepath.Join(dir, config.Dir, "config.yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			if opts.apiBase != "" {
				cfg.API.BaseURL = opts.apiBase
			}
			if err := config.WriteConfig(dir, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, environment variables and
flags are applied. The auth token is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir(opts)
			if err != nil {
				return err
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			if opts.apiBase != "" {
				cfg.API.BaseURL = opts.apiBase
			}
			if opts.token != "" {
				cfg.API.AuthToken = opts.token
			}
			if cfg.API.AuthToken != "" {
				cfg.API.AuthToken = "********"
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.Wrap(err, "marshalling config")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func projectDir(opts *rootOptions) (string, error) {
	if opts.dir != "" {
		return opts.dir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "getting current directory")
	}
	return dir, nil
}
