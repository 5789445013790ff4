package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/store"
)

// HybridSearcher runs the vector and lexical sub-searches in parallel
// and fuses their candidates. When exactly one signal fails the other
// still answers, with the response marked degraded; when both fail the
// query errors.
type HybridSearcher struct {
	vector    store.VectorStore
	lexical   store.LexicalIndex
	embedder  embed.Embedder
	config    config.SearchConfig
	logger    *slog.Logger
	stopTerms map[string]struct{}
}

// NewHybridSearcher wires a searcher over the two indexes. All
// dependencies are required.
func NewHybridSearcher(
	vector store.VectorStore,
	lexical store.LexicalIndex,
	embedder embed.Embedder,
	cfg config.SearchConfig,
	logger *slog.Logger,
) (*HybridSearcher, error) {
	if vector == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if lexical == nil {
		return nil, fmt.Errorf("lexical index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearcher{
		vector:    vector,
		lexical:   lexical,
		embedder:  embedder,
		config:    cfg,
		logger:    logger,
		stopTerms: store.BuildStopWordMap(store.DefaultStopWords),
	}, nil
}

// Search executes both sub-searches concurrently and fuses the
// candidate lists. An empty or whitespace-only query is an error.
func (s *HybridSearcher) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, qerrors.New(qerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	opts = opts.applyDefaults(s.config)

	lexicalQuery := query
	if strings.TrimSpace(opts.LexicalQuery) != "" {
		lexicalQuery = strings.TrimSpace(opts.LexicalQuery)
	}
	// Tokenize the lexical input up front: identifiers split, stop
	// words dropped. An all-stop-word query yields an empty lexical
	// list rather than noise matches.
	lexicalQuery = strings.Join(store.QueryTerms(lexicalQuery, s.stopTerms), " ")

	var (
		vecResults []*store.VectorResult
		lexResults []*store.LexicalResult
		vecErr     error
		lexErr     error
	)

	// Sub-search failures are collected, not propagated, so one signal
	// failing does not cancel the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecResults, vecErr = s.vectorSearch(gctx, query, opts.CandidatePoolVector)
		return nil
	})
	g.Go(func() error {
		lexResults, lexErr = s.lexical.Search(gctx, lexicalQuery, opts.CandidatePoolLexical)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if vecErr != nil && lexErr != nil {
		return nil, qerrors.New(qerrors.ErrCodeStoreUnavailable,
			"both search signals failed", fmt.Errorf("vector: %w; lexical: %w", vecErr, lexErr))
	}
	if vecErr != nil {
		s.logger.Warn("vector search degraded, serving lexical only",
			"error", vecErr)
		vecResults = nil
	}
	if lexErr != nil {
		s.logger.Warn("lexical search degraded, serving vector only",
			"error", lexErr)
		lexResults = nil
	}

	fusion := Fusion{
		VectorWeight:  opts.VectorWeight,
		LexicalWeight: opts.LexicalWeight,
		MinScore:      opts.MinScore,
	}

	return &Response{
		Results:         fusion.Fuse(vecResults, lexResults, opts.Limit),
		VectorDegraded:  vecErr != nil,
		LexicalDegraded: lexErr != nil,
	}, nil
}

// vectorSearch embeds the query and fetches nearest neighbors.
func (s *HybridSearcher) vectorSearch(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	return s.vector.Search(ctx, vec, limit)
}
