package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
	"github.com/quarrylabs/quarry/internal/search"
)

func newQueryCmd() *cobra.Command {
	var budget int
	var keyword string

	cmd := &cobra.Command{
		Use:   "query <name> <question>",
		Short: "Query an index and print a curated context package",
		Long: `Run a hybrid vector + BM25 search against the named index, fuse the
rankings, and print the selected chunks with citations, bounded by
the token budget. An empty result is a valid outcome.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				opts := search.Options{LexicalQuery: keyword}
				pkg, err := eng.QueryWithOptions(ctx, args[0], args[1], budget, opts)
				if err != nil {
					return err
				}

				if pkg.Degraded {
					out.Warningf("One search signal was unavailable; results use a single signal")
				}
				if len(pkg.Entries) == 0 {
					out.Println("No results.")
					return nil
				}

				out.Printf("%s", pkg.Render())
				out.Dimf("%d chunks, %d tokens (budget %d)",
					len(pkg.Entries), pkg.TotalTokens, pkg.TokenBudget)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&budget, "budget", 0, "Token budget for the context package (default from config)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Separate keyword query for the lexical signal")
	return cmd
}
