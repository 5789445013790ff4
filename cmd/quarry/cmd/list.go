package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				infos, err := eng.ListIndexes(ctx)
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					out.Println("No indexes. Create one with 'quarry create <name>'.")
					return nil
				}

				rows := make([][]string, len(infos))
				for i, info := range infos {
					rows[i] = []string{
						info.Name,
						strconv.Itoa(info.Dimension),
						info.CreatedAt.Local().Format(time.DateTime),
					}
				}
				out.Table([]string{"NAME", "DIMENSION", "CREATED"}, rows)
				return nil
			})
		},
	}
}
