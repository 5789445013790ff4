package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/dedup"
	"github.com/quarrylabs/quarry/internal/embed"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/store"
)

// DefaultIngestWorkers bounds per-document chunking parallelism.
const DefaultIngestWorkers = 4

// IngestReport summarizes one ingest run.
type IngestReport struct {
	DocsTotal       int
	ChunksTotal     int
	ChunksNew       int
	ChunksDuplicate int

	// ChunksSkipped counts chunks whose embed or upsert failed after
	// retries. Skipped lists their IDs so the caller can retry the
	// ingest; retry is safe because failed chunks are un-admitted.
	ChunksSkipped int
	Skipped       []string

	// Degraded counts documents that fell back to plain-text chunking.
	Degraded int
}

// Pipeline ingests documents into one collection: chunk, deduplicate,
// embed in batches, and dual-write to the vector and lexical indexes.
type Pipeline struct {
	col       *Collection
	chunker   *chunk.StructuralChunker
	dedup     *dedup.Deduplicator
	embedder  embed.Embedder
	batchSize int
	workers   int
	logger    *slog.Logger
}

// NewPipeline wires an ingest pipeline over an open collection.
func NewPipeline(col *Collection, chunker *chunk.StructuralChunker, embedder embed.Embedder, batchSize, workers int, logger *slog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		col:       col,
		chunker:   chunker,
		dedup:     dedup.New(col.Metadata),
		embedder:  embedder,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
	}
}

// Ingest runs the full pipeline. Chunking and admission run in
// parallel across documents; embedding runs in batches, and a batch
// failing after retries skips only its own chunks. On cancellation,
// chunks already written stay valid and the report lists what was not
// processed.
func (p *Pipeline) Ingest(ctx context.Context, docs []*chunk.Document) (*IngestReport, error) {
	if p.embedder.Dimensions() != p.col.Info.Dimension {
		return nil, qerrors.DimensionMismatch(p.col.Info.Name, p.col.Info.Dimension, p.embedder.Dimensions())
	}

	report := &IngestReport{DocsTotal: len(docs)}

	newChunks, err := p.chunkAndAdmit(ctx, docs, report)
	if err != nil {
		return report, err
	}

	for start := 0; start < len(newChunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(newChunks) {
			end = len(newChunks)
		}
		batch := newChunks[start:end]

		if err := ctx.Err(); err != nil {
			p.skipBatch(newChunks[start:], report, "ingest cancelled")
			return report, err
		}

		if err := p.storeBatch(ctx, batch); err != nil {
			if qerrors.IsFatal(err) {
				p.skipBatch(newChunks[start:], report, "fatal store failure")
				return report, err
			}
			p.logger.Warn("embedding batch skipped",
				"index", p.col.Info.Name,
				"batch_start", start,
				"batch_size", len(batch),
				"error", err)
			p.skipBatch(batch, report, "batch failed")
			continue
		}
		report.ChunksNew += len(batch)
	}

	if err := p.col.Save(); err != nil {
		return report, qerrors.StoreUnavailable("persist vector snapshot", err)
	}
	return report, nil
}

// chunkAndAdmit chunks every document with bounded parallelism and
// runs dedup admission. It returns the chunks that still need
// embedding, in deterministic document order.
func (p *Pipeline) chunkAndAdmit(ctx context.Context, docs []*chunk.Document, report *IngestReport) ([]*chunk.Chunk, error) {
	perDoc := make([][]*chunk.Chunk, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			chunks, degraded, err := p.chunker.Split(gctx, doc)
			if err != nil {
				return fmt.Errorf("chunking %s: %w", doc.SourceID, err)
			}

			var admitted []*chunk.Chunk
			var duplicates int
			for _, c := range chunks {
				status, err := p.dedup.Admit(gctx, c)
				if err != nil {
					return fmt.Errorf("admitting chunk from %s: %w", doc.SourceID, err)
				}
				if status == dedup.StatusNew {
					admitted = append(admitted, c)
				} else {
					duplicates++
				}
			}

			mu.Lock()
			perDoc[i] = admitted
			report.ChunksTotal += len(chunks)
			report.ChunksDuplicate += duplicates
			if degraded {
				report.Degraded++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var newChunks []*chunk.Chunk
	for _, chunks := range perDoc {
		newChunks = append(newChunks, chunks...)
	}
	return newChunks, nil
}

// storeBatch embeds one batch and writes it to both indexes. The
// failing half of a dual write is retried once; if it still fails the
// other half is rolled back best-effort so the two indexes stay in
// step.
func (p *Pipeline) storeBatch(ctx context.Context, batch []*chunk.Chunk) error {
	ids := make([]string, len(batch))
	texts := make([]string, len(batch))
	lexDocs := make([]*store.Document, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
		texts[i] = c.Text
		lexDocs[i] = &store.Document{ID: c.ID, Text: c.Text}
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return qerrors.New(qerrors.ErrCodeEmbeddingBatch,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(batch)), nil)
	}
	for _, vec := range vectors {
		if len(vec) != p.col.Info.Dimension {
			return qerrors.DimensionMismatch(p.col.Info.Name, p.col.Info.Dimension, len(vec))
		}
	}

	if err := p.col.Vector.Upsert(ctx, ids, vectors); err != nil {
		if err = p.col.Vector.Upsert(ctx, ids, vectors); err != nil {
			return qerrors.New(qerrors.ErrCodeDualWriteFailed, "vector upsert failed", err)
		}
	}

	if err := p.col.Lexical.Index(ctx, lexDocs); err != nil {
		if err = p.col.Lexical.Index(ctx, lexDocs); err != nil {
			if rbErr := p.col.Vector.Delete(ctx, ids); rbErr != nil {
				p.logger.Warn("vector rollback failed after lexical write failure",
					"index", p.col.Info.Name, "error", rbErr)
			}
			return qerrors.New(qerrors.ErrCodeDualWriteFailed, "lexical index failed", err)
		}
	}

	return nil
}

// skipBatch records chunks as skipped and un-admits them so a retry
// re-processes them instead of seeing duplicates of unstored content.
func (p *Pipeline) skipBatch(batch []*chunk.Chunk, report *IngestReport, reason string) {
	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
	}
	report.ChunksSkipped += len(batch)
	report.Skipped = append(report.Skipped, ids...)

	if err := p.col.Metadata.DeleteChunks(context.Background(), ids); err != nil {
		p.logger.Warn("failed to un-admit skipped chunks",
			"index", p.col.Info.Name, "reason", reason, "error", err)
	}
}
