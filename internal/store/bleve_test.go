package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexicalIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("", DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "c1", Text: "func normalizeEmbedding(vec []float32) normalizes a vector"},
		{ID: "c2", Text: "cobra command parsing for the ingest subcommand"},
		{ID: "c3", Text: "heading hierarchy for markdown sections"},
	}))

	results, err := idx.Search(ctx, "normalize embedding vector", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ID)
	assert.Positive(t, results[0].Score)
}

func TestBleveIndex_CodeIdentifierSplitting(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "c1", Text: "func resolveChunkProvenance(chunkID string)"},
	}))

	// A query for one camelCase component should match.
	results, err := idx.Search(ctx, "provenance", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestBleveIndex_EqualScoresOrderByID(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	// Identical text scores identically; order must fall back to ID.
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "zzz", Text: "identical chunk text"},
		{ID: "aaa", Text: "identical chunk text"},
	}))

	results, err := idx.Search(ctx, "identical chunk", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "aaa", results[0].ID)
	assert.Equal(t, "zzz", results[1].ID)
}

func TestBleveIndex_EmptyQueryReturnsEmpty(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: "c1", Text: "content"}}))

	for _, q := range []string{"", "   "} {
		results, err := idx.Search(ctx, q, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestBleveIndex_ReindexSameIDReplaces(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: "c1", Text: "original banana"}}))
	require.NoError(t, idx.Index(ctx, []*Document{{ID: "c1", Text: "replacement mango"}}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, "banana", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "mango", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBleveIndex_DeleteAndAllIDs(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "c1", Text: "alpha content"},
		{ID: "c2", Text: "beta content"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	ids, err := idx.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)
}
