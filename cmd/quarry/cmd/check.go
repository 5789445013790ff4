package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
)

func newCheckCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check <name>",
		Short: "Verify vector/lexical consistency for an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				result, err := eng.CheckIndex(ctx, args[0], repair)
				if err != nil {
					return err
				}

				if result.Consistent() {
					out.Successf("Index %q is consistent (%d chunks checked)", args[0], result.Checked)
					return nil
				}

				out.Warningf("Found %d inconsistencies in %q", len(result.Inconsistencies), args[0])
				for _, issue := range result.Inconsistencies {
					out.Dimf("  %s: %s", issue.Type, issue.ChunkID)
				}
				if repair {
					out.Successf("Repair applied; re-run check to verify")
				} else {
					out.Println("Run with --repair to fix.")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Repair detected inconsistencies")
	return cmd
}
