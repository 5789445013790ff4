// Package engine is the consumer-facing surface: create and destroy
// named indexes, ingest documents, and answer queries with curated
// context packages. The CLI calls nothing below this package.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/curate"
	"github.com/quarrylabs/quarry/internal/embed"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/search"
)

// Engine owns the shared components and hands per-index work to the
// pipeline, searcher, and curator.
type Engine struct {
	cfg      *config.Config
	manager  *index.Manager
	chunker  *chunk.StructuralChunker
	embedder embed.Embedder
	logger   *slog.Logger
}

// Stats describes one index for reporting.
type Stats struct {
	Name         string
	CollectionID string
	Dimension    int
	CreatedAt    time.Time
	ChunkCount   int
	VectorCount  int
	LexicalCount int
}

// New wires an engine from configuration. Offline forces the static
// embedding provider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, offline bool) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings, offline)
	if err != nil {
		return nil, err
	}

	manager, err := index.NewManager(cfg.DataDir, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	chunker := chunk.NewStructuralChunker(chunk.Options{
		MaxChunkTokens: cfg.Chunking.MaxChunkTokens,
		OverlapTokens:  cfg.Chunking.OverlapTokens,
	}, logger)

	return &Engine{
		cfg:      cfg,
		manager:  manager,
		chunker:  chunker,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Close releases the embedder, chunker, and all open collections.
func (e *Engine) Close() error {
	e.chunker.Close()
	err := e.embedder.Close()
	if mErr := e.manager.Close(); err == nil {
		err = mErr
	}
	return err
}

// CreateIndex creates a named index. A zero dimension takes the
// configured embedder's dimension.
func (e *Engine) CreateIndex(ctx context.Context, name string, dimension int) (*index.Info, error) {
	if dimension <= 0 {
		dimension = e.embedder.Dimensions()
	}
	return e.manager.Create(ctx, name, dimension)
}

// DestroyIndex removes an index and its backing collections.
func (e *Engine) DestroyIndex(ctx context.Context, name string) error {
	return e.manager.Destroy(ctx, name)
}

// ListIndexes returns all registered indexes.
func (e *Engine) ListIndexes(ctx context.Context) ([]*index.Info, error) {
	return e.manager.Registry().List(ctx)
}

// Ingest chunks, deduplicates, embeds, and stores the documents into
// the named index.
func (e *Engine) Ingest(ctx context.Context, name string, docs []*chunk.Document) (*index.IngestReport, error) {
	col, err := e.manager.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	pipeline := index.NewPipeline(col, e.chunker, e.embedder,
		e.cfg.Embeddings.BatchSize, e.cfg.Performance.IngestWorkers, e.logger)
	return pipeline.Ingest(ctx, docs)
}

// Query runs a hybrid search against the named index and curates the
// fused ranking into a token-bounded context package. Querying an
// empty index yields an empty package, not an error.
func (e *Engine) Query(ctx context.Context, name, text string, tokenBudget int) (*curate.ContextPackage, error) {
	return e.QueryWithOptions(ctx, name, text, tokenBudget, search.Options{})
}

// QueryWithOptions is Query with per-call search overrides, such as a
// distinct lexical query string.
func (e *Engine) QueryWithOptions(ctx context.Context, name, text string, tokenBudget int, opts search.Options) (*curate.ContextPackage, error) {
	col, err := e.manager.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if e.embedder.Dimensions() != col.Info.Dimension {
		return nil, qerrors.DimensionMismatch(name, col.Info.Dimension, e.embedder.Dimensions())
	}

	searcher, err := search.NewHybridSearcher(col.Vector, col.Lexical, e.embedder, e.cfg.Search, e.logger)
	if err != nil {
		return nil, err
	}

	resp, err := searcher.Search(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	if tokenBudget <= 0 {
		tokenBudget = e.cfg.Curate.TokenBudget
	}
	pkg, err := curate.NewCurator(col.Metadata).Curate(ctx, text, resp.Results, tokenBudget)
	if err != nil {
		return nil, err
	}
	pkg.Degraded = resp.Degraded()
	return pkg, nil
}

// Stats reports sizes and settings for one index.
func (e *Engine) Stats(ctx context.Context, name string) (*Stats, error) {
	col, err := e.manager.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	chunkCount, err := col.Metadata.Count(ctx)
	if err != nil {
		return nil, err
	}
	lexCount, err := col.Lexical.DocCount()
	if err != nil {
		return nil, err
	}

	return &Stats{
		Name:         col.Info.Name,
		CollectionID: col.Info.CollectionID,
		Dimension:    col.Info.Dimension,
		CreatedAt:    col.Info.CreatedAt,
		ChunkCount:   chunkCount,
		VectorCount:  col.Vector.Count(),
		LexicalCount: lexCount,
	}, nil
}

// CheckIndex runs the dual-store consistency checker, repairing when
// repair is set.
func (e *Engine) CheckIndex(ctx context.Context, name string, repair bool) (*index.CheckResult, error) {
	col, err := e.manager.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	checker := index.NewConsistencyChecker(col, e.logger)
	result, err := checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	if repair && !result.Consistent() {
		if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
			return result, err
		}
	}
	return result, nil
}
