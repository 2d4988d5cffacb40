package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudkit/cloudkit/pkg/sdk"
)

func newAnalyticsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Run analytics category operations",
	}

	cmd.AddCommand(newRecordCommand(opts))

	return cmd
}

func newRecordCommand(opts *globalOptions) *cobra.Command {
	var (
		props   []string
		metrics []string
	)

	cmd := &cobra.Command{
		Use:     "record <event-name>",
		Short:   "Record an analytics event and flush it",
		Example: `  cloudkit analytics record photo_shared --prop album=trip --metric size_mb=2.5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parsePairs(props)
			if err != nil {
				return err
			}
			values, err := parseMetrics(metrics)
			if err != nil {
				return err
			}

			return opts.withFramework(cmd.Context(), func(fw *sdk.Framework) error {
				analytics, err := fw.Analytics()
				if err != nil {
					return err
				}
				event, err := analytics.RecordEvent(cmd.Context(), args[0], properties, values)
				if err != nil {
					return err
				}
				if err := analytics.FlushEvents(cmd.Context()); err != nil {
					return err
				}

				return opts.render(cmd.OutOrStdout(), event, func(w io.Writer) {
					fmt.Fprintf(w, "Recorded %s (%s)\n", event.Name, event.ID)
				})
			})
		},
	}

	cmd.Flags().StringArrayVar(&props, "prop", nil, "event property as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&metrics, "metric", nil, "event metric as key=number (repeatable)")

	return cmd
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q (want key=value)", pair)
		}
		out[k] = v
	}
	return out, nil
}

func parseMetrics(pairs []string) (map[string]float64, error) {
	raw, err := parsePairs(pairs)
	if err != nil || raw == nil {
		return nil, err
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid metric %s=%s: %w", k, v, err)
		}
		out[k] = f
	}
	return out, nil
}
