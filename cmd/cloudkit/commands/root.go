// Package commands implements the cloudkit command line.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloudkit/cloudkit/internal/config"
	"github.com/cloudkit/cloudkit/pkg/sdk"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	envFiles    []string
	outputsFile string
	logLevel    string
	jsonOutput  bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "cloudkit",
		Short: "cloudkit - category plugins for analytics and storage",
		Long: `cloudkit configures category plugins from a backend outputs document
and exposes their operations from the command line.

Configuration is read from an optional YAML file, .env files and
CLOUDKIT_* environment variables, in that order.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load")
	rootCmd.PersistentFlags().StringVar(&opts.outputsFile, "outputs", "", "outputs document path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newStorageCommand(opts))
	rootCmd.AddCommand(newAnalyticsCommand(opts))
	rootCmd.AddCommand(newHealthCommand(opts))

	return rootCmd
}

// load builds the effective configuration from flags, files and environment.
func (o *globalOptions) load() (*config.Configuration, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}

	cfg := config.NewDefault()
	if o.configPath != "" {
		if err := cfg.LoadFromFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if o.outputsFile != "" {
		cfg.Global.OutputsFile = o.outputsFile
	}
	if o.logLevel != "" {
		cfg.Global.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

// withFramework configures a framework, runs fn and stops the framework,
// flushing any recorded analytics.
func (o *globalOptions) withFramework(ctx context.Context, fn func(*sdk.Framework) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}

	fw, err := sdk.FromConfig(ctx, cfg, sdk.Dependencies{})
	if err != nil {
		return err
	}

	runErr := fn(fw)
	if err := fw.Stop(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// render writes v as indented JSON when --json is set, otherwise calls text.
func (o *globalOptions) render(w io.Writer, v any, text func(io.Writer)) error {
	if !o.jsonOutput {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
