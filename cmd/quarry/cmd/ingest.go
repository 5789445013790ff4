package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/discover"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/output"
)

func newIngestCmd() *cobra.Command {
	var (
		noGitignore bool
		exclude     []string
	)

	cmd := &cobra.Command{
		Use:   "ingest <name> <path>...",
		Short: "Ingest files or directories into an index",
		Long: `Walk the given paths, infer each file's content type from its
extension, and ingest the documents: chunking, deduplication,
embedding, and dual-index storage. Re-ingesting unchanged content
stores nothing new.

Hidden files, binaries, oversized files, and anything matched by
.gitignore are skipped.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *output.Writer) error {
				docs, err := collectDocuments(ctx, args[1:], discover.Options{
					RespectGitignore: !noGitignore,
					ExcludePatterns:  exclude,
				})
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					out.Warningf("No ingestible files found")
					return nil
				}

				report, err := eng.Ingest(ctx, args[0], docs)
				if err != nil {
					return err
				}

				out.Successf("Ingested %d documents into %q", report.DocsTotal, args[0])
				out.Field("chunks", report.ChunksTotal)
				out.Field("new", report.ChunksNew)
				out.Field("duplicate", report.ChunksDuplicate)
				if report.ChunksSkipped > 0 {
					out.Warningf("%d chunks skipped after embedding failures; re-run ingest to retry", report.ChunksSkipped)
				}
				if report.Degraded > 0 {
					out.Warningf("%d documents fell back to plain-text chunking", report.Degraded)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "Do not honor .gitignore files")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Extra gitignore-style patterns to skip")
	return cmd
}

// collectDocuments discovers ingestible files under each path and loads
// them as documents. Source IDs are paths relative to the walked root,
// so re-ingesting from the same root is stable.
func collectDocuments(ctx context.Context, roots []string, opts discover.Options) ([]*chunk.Document, error) {
	finder, err := discover.New()
	if err != nil {
		return nil, err
	}

	var docs []*chunk.Document
	for _, root := range roots {
		files, err := finder.Find(ctx, root, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			content, err := os.ReadFile(f.AbsPath)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", f.AbsPath, err)
			}
			docs = append(docs, &chunk.Document{
				SourceID:    filepath.ToSlash(f.Path),
				ContentType: chunk.DetectContentType(f.Path),
				Content:     content,
			})
		}
	}
	return docs, nil
}
