package commands

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/pkg/sdk"
)

type categoryHealthOutput struct {
	Category          string `json:"category"`
	State             string `json:"state"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	LastError         string `json:"last_error,omitempty"`
}

type healthOutput struct {
	Categories []categoryHealthOutput              `json:"categories"`
	Operations map[string]metrics.OperationMetrics `json:"operations,omitempty"`
}

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every configured category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withFramework(cmd.Context(), func(fw *sdk.Framework) error {
				checkErr := fw.HealthCheck(cmd.Context())

				out := healthOutput{Operations: fw.Operations()}
				for _, h := range fw.Health() {
					out.Categories = append(out.Categories, categoryHealthOutput{
						Category:          h.Category,
						State:             h.State.String(),
						ConsecutiveErrors: h.ConsecutiveErrors,
						LastError:         h.LastError,
					})
				}

				if err := opts.render(cmd.OutOrStdout(), out, func(w io.Writer) {
					writeHealth(w, out)
				}); err != nil {
					return err
				}
				return checkErr
			})
		},
	}
}

func writeHealth(w io.Writer, out healthOutput) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSTATE\tERRORS\tLAST ERROR")
	for _, h := range out.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", h.Category, h.State, h.ConsecutiveErrors, h.LastError)
	}

	if len(out.Operations) > 0 {
		names := make([]string, 0, len(out.Operations))
		for name := range out.Operations {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "OPERATION\tCOUNT\tERRORS\tAVG")
		for _, name := range names {
			op := out.Operations[name]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", name, op.Count, op.Errors, op.AvgDuration)
		}
	}
	_ = tw.Flush()
}
