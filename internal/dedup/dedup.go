// Package dedup admits chunks into a collection exactly once by
// content hash. Duplicate content, within or across documents, is
// recorded as provenance instead of being re-embedded.
package dedup

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/quarrylabs/quarry/internal/chunk"
)

// Status is the outcome of an admission check.
type Status int

const (
	// StatusNew means the chunk content has not been seen before and
	// must be embedded and stored.
	StatusNew Status = iota
	// StatusDuplicate means identical content is already stored; only
	// provenance was recorded.
	StatusDuplicate
)

// Records is the persistence surface the deduplicator needs. The
// metadata store implements it.
type Records interface {
	HasChunk(ctx context.Context, id string) (bool, error)
	SaveChunks(ctx context.Context, chunks []*chunk.Chunk) error
	AddProvenance(ctx context.Context, chunkID, sourceID string, span chunk.Span) error
}

// stripeCount sizes the keyed mutex. Contention is per chunk ID, so a
// modest stripe count is enough.
const stripeCount = 64

// Deduplicator serializes admission per chunk ID so two concurrent
// ingests cannot both observe NEW for the same content hash.
type Deduplicator struct {
	records Records
	stripes [stripeCount]sync.Mutex
}

// New creates a deduplicator over the given records.
func New(records Records) *Deduplicator {
	return &Deduplicator{records: records}
}

// Admit checks whether the chunk's content is already stored. New
// content gets its chunk row persisted and StatusNew returned; known
// content gets this occurrence appended to provenance. The check and
// the row insert happen under a per-ID lock.
func (d *Deduplicator) Admit(ctx context.Context, c *chunk.Chunk) (Status, error) {
	lock := &d.stripes[stripeFor(c.ID)]
	lock.Lock()
	defer lock.Unlock()

	exists, err := d.records.HasChunk(ctx, c.ID)
	if err != nil {
		return StatusDuplicate, err
	}

	if exists {
		if err := d.records.AddProvenance(ctx, c.ID, c.SourceID, c.Span); err != nil {
			return StatusDuplicate, err
		}
		return StatusDuplicate, nil
	}

	if err := d.records.SaveChunks(ctx, []*chunk.Chunk{c}); err != nil {
		return StatusNew, err
	}
	return StatusNew, nil
}

func stripeFor(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % stripeCount
}
