package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
)

func newCreateCmd() *cobra.Command {
	var dimensions int

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new index",
		Long: `Create a named index: a vector collection, a lexical collection, and
a metadata database, created together. The embedding dimension is
fixed at creation time; it defaults to the configured embedder's
dimension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				info, err := eng.CreateIndex(ctx, args[0], dimensions)
				if err != nil {
					return err
				}
				out.Successf("Created index %q (dimension %d)", info.Name, info.Dimension)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "Embedding dimension (default: embedder's dimension)")
	return cmd
}
