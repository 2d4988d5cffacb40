package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const redacted = "REDACTED"

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect cloudkit configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), map[string]any{
				"valid":        true,
				"outputs_file": cfg.Global.OutputsFile,
			}, func(w io.Writer) {
				fmt.Fprintf(w, "Configuration is valid (outputs: %s)\n", cfg.Global.OutputsFile)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Storage.SecretAccessKey != "" {
				shown.Storage.SecretAccessKey = redacted
			}
			if shown.Storage.SessionToken != "" {
				shown.Storage.SessionToken = redacted
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
