package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
)

func newDestroyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Destroy an index and its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("destroying %q deletes all its data; re-run with --force", args[0])
			}
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				if err := eng.DestroyIndex(ctx, args[0]); err != nil {
					return err
				}
				out.Successf("Destroyed index %q", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm destruction")
	return cmd
}
