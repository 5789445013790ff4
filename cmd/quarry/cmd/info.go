package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show statistics for an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				stats, err := eng.Stats(ctx, args[0])
				if err != nil {
					return err
				}

				out.Headerf("Index %q", stats.Name)
				out.Field("collection", stats.CollectionID)
				out.Field("dimension", stats.Dimension)
				out.Field("created", stats.CreatedAt.Local().Format(time.DateTime))
				out.Field("chunks", stats.ChunkCount)
				out.Field("vectors", stats.VectorCount)
				out.Field("lexical docs", stats.LexicalCount)
				return nil
			})
		},
	}
}
