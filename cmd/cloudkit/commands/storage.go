package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudkit/cloudkit/pkg/sdk"
)

type uploadOutput struct {
	Path string `json:"path"`
	Key  string `json:"key"`
}

type itemOutput struct {
	Path         string    `json:"path"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

type listOutput struct {
	Items     []itemOutput `json:"items"`
	NextToken string       `json:"next_token,omitempty"`
}

func newStorageCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Run storage category operations",
	}

	cmd.AddCommand(newUploadCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newURLCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))

	return cmd
}

func newUploadCommand(opts *globalOptions) *cobra.Command {
	var byKey bool

	cmd := &cobra.Command{
		Use:   "upload <path> <local-file>",
		Short: "Upload a local file",
		Long: `Upload a local file to the given object path.

With --key the first argument is a key below the default access level
prefix instead of a full path.`,
		Example: `  # Upload to a full path
  cloudkit storage upload public/photos/cat.jpg ./cat.jpg

  # Upload by key under the default access level
  cloudkit storage upload --key photos/cat.jpg ./cat.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withFramework(cmd.Context(), func(fw *sdk.Framework) error {
				store, err := fw.Storage()
				if err != nil {
					return err
				}

				var out uploadOutput
				if byKey {
					data, err := os.ReadFile(args[1])
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", args[1], err)
					}
					result, err := store.UploadByKey(cmd.Context(), args[0], data)
					if err != nil {
						return err
					}
					out = uploadOutput{Path: result.Path(), Key: result.Key()}
				} else {
					result, err := store.UploadFile(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					out = uploadOutput{Path: result.Path(), Key: result.Key()}
				}

				return opts.render(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintf(w, "Uploaded %s\n", out.Path)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&byKey, "key", false, "treat the first argument as a key under the default access level")

	return cmd
}

func newListCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List objects under a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}

			return opts.withFramework(cmd.Context(), func(fw *sdk.Framework) error {
				store, err := fw.Storage()
				if err != nil {
					return err
				}
				result, err := store.List(cmd.Context(), prefix, limit)
				if err != nil {
					return err
				}

				out := listOutput{NextToken: result.NextToken(), Items: []itemOutput{}}
				for _, item := range result.Items() {
					out.Items = append(out.Items, itemOutput{
						Path:         item.Path(),
						Key:          item.Key(),
						Size:         item.Size(),
						LastModified: item.LastModified(),
						ETag:         item.ETag(),
					})
				}

				return opts.render(cmd.OutOrStdout(), out, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "PATH\tSIZE\tLAST MODIFIED")
					for _, item := range out.Items {
						fmt.Fprintf(tw, "%s\t%d\t%s\n", item.Path, item.Size, item.LastModified.Format(time.RFC3339))
					}
					_ = tw.Flush()
					if out.NextToken != "" {
						fmt.Fprintf(w, "More results available (next token: %s)\n", out.NextToken)
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "page size; 0 lists everything")

	return cmd
}

func newURLCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "url <path>",
		Short: "Print a presigned download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withFramework(cmd.Context(), func(fw *sdk.Framework) error {
				store, err := fw.Storage()
				if err != nil {
					return err
				}
				result, err := store.GetURL(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := map[string]any{"url": result.URL(), "expires": result.Expires()}
				return opts.render(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintln(w, result.URL())
				})
			})
		},
	}
}

func newRemoveCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withFramework(cmd.Context(), func(fw *sdk.Framework) error {
				store, err := fw.Storage()
				if err != nil {
					return err
				}
				result, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return opts.render(cmd.OutOrStdout(), map[string]string{"path": result.Path()}, func(w io.Writer) {
					fmt.Fprintf(w, "Removed %s\n", result.Path())
				})
			})
		},
	}
}
