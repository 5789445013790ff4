package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/store"
)

func TestConsistencyChecker_DetectsAndRepairsOrphans(t *testing.T) {
	_, col := newTestCollection(t)
	p := newTestPipeline(t, col, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []*chunk.Document{markdownDoc("guide.md", guideMarkdown)})
	require.NoError(t, err)

	// Plant an orphan in the lexical index only.
	require.NoError(t, col.Lexical.Index(ctx, []*store.Document{{ID: "orphan", Text: "stray entry"}}))

	checker := NewConsistencyChecker(col, nil)
	result, err := checker.Check(ctx)
	require.NoError(t, err)
	require.Len(t, result.Inconsistencies, 1)
	assert.Equal(t, OrphanLexical, result.Inconsistencies[0].Type)
	assert.Equal(t, "orphan", result.Inconsistencies[0].ChunkID)

	require.NoError(t, checker.Repair(ctx, result.Inconsistencies))

	result, err = checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, result.Consistent())
}

func TestConsistencyChecker_RemovesPartialChunks(t *testing.T) {
	_, col := newTestCollection(t)
	p := newTestPipeline(t, col, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []*chunk.Document{markdownDoc("guide.md", guideMarkdown)})
	require.NoError(t, err)

	// Drop one chunk from the vector side to simulate a torn write.
	ids, err := col.Metadata.AllIDs(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	require.NoError(t, col.Vector.Delete(ctx, ids[:1]))

	checker := NewConsistencyChecker(col, nil)
	result, err := checker.Check(ctx)
	require.NoError(t, err)
	require.Len(t, result.Inconsistencies, 1)
	assert.Equal(t, MissingVector, result.Inconsistencies[0].Type)

	require.NoError(t, checker.Repair(ctx, result.Inconsistencies))

	// Partial chunk is gone everywhere; a re-ingest restores it.
	result, err = checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, result.Consistent())
	assert.Equal(t, 2, result.Checked)

	report, err := p.Ingest(ctx, []*chunk.Document{markdownDoc("guide.md", guideMarkdown)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksNew)
}
