package search

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/store"
)

type fakeVectorStore struct {
	store.VectorStore
	results []*store.VectorResult
	err     error
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, _ int) ([]*store.VectorResult, error) {
	return f.results, f.err
}

type fakeLexicalIndex struct {
	store.LexicalIndex
	results   []*store.LexicalResult
	err       error
	lastQuery string
}

func (f *fakeLexicalIndex) Search(_ context.Context, query string, _ int) ([]*store.LexicalResult, error) {
	f.lastQuery = query
	return f.results, f.err
}

func newTestSearcher(t *testing.T, vec *fakeVectorStore, lex *fakeLexicalIndex) *HybridSearcher {
	t.Helper()
	s, err := NewHybridSearcher(vec, lex, embed.NewStaticEmbedder(),
		config.Default().Search, slog.Default())
	require.NoError(t, err)
	return s
}

func TestSearch_FusesBothSignals(t *testing.T) {
	vec := &fakeVectorStore{results: []*store.VectorResult{
		{ID: "shared", Score: 0.9},
		{ID: "veconly", Score: 0.4},
	}}
	lex := &fakeLexicalIndex{results: []*store.LexicalResult{
		{ID: "shared", Score: 8.0, MatchedTerms: []string{"shared"}},
	}}
	s := newTestSearcher(t, vec, lex)

	resp, err := s.Search(context.Background(), "shared thing", Options{})
	require.NoError(t, err)
	assert.False(t, resp.Degraded())
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "shared", resp.Results[0].ChunkID)
	assert.True(t, resp.Results[0].InBoth)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	s := newTestSearcher(t, &fakeVectorStore{}, &fakeLexicalIndex{})

	for _, q := range []string{"", "   \t"} {
		_, err := s.Search(context.Background(), q, Options{})
		require.Error(t, err)
		assert.Equal(t, qerrors.ErrCodeQueryEmpty, qerrors.GetCode(err))
	}
}

func TestSearch_VectorFailureDegradesToLexical(t *testing.T) {
	vec := &fakeVectorStore{err: fmt.Errorf("hnsw unavailable")}
	lex := &fakeLexicalIndex{results: []*store.LexicalResult{{ID: "hit", Score: 5.0}}}
	s := newTestSearcher(t, vec, lex)

	resp, err := s.Search(context.Background(), "query", Options{})
	require.NoError(t, err)
	assert.True(t, resp.VectorDegraded)
	assert.False(t, resp.LexicalDegraded)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "hit", resp.Results[0].ChunkID)
}

func TestSearch_LexicalFailureDegradesToVector(t *testing.T) {
	vec := &fakeVectorStore{results: []*store.VectorResult{{ID: "hit", Score: 0.8}}}
	lex := &fakeLexicalIndex{err: fmt.Errorf("index corrupt")}
	s := newTestSearcher(t, vec, lex)

	resp, err := s.Search(context.Background(), "query", Options{})
	require.NoError(t, err)
	assert.True(t, resp.LexicalDegraded)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "hit", resp.Results[0].ChunkID)
}

func TestSearch_BothFailuresError(t *testing.T) {
	vec := &fakeVectorStore{err: fmt.Errorf("vector down")}
	lex := &fakeLexicalIndex{err: fmt.Errorf("lexical down")}
	s := newTestSearcher(t, vec, lex)

	_, err := s.Search(context.Background(), "query", Options{})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeStoreUnavailable, qerrors.GetCode(err))
}

func TestSearch_LexicalQueryOverride(t *testing.T) {
	vec := &fakeVectorStore{}
	lex := &fakeLexicalIndex{}
	s := newTestSearcher(t, vec, lex)

	// The override replaces the semantic text on the lexical side; its
	// identifier parts reach the index, not the semantic question.
	_, err := s.Search(context.Background(), "how does chunk hashing work",
		Options{LexicalQuery: "ComputeID"})
	require.NoError(t, err)
	assert.Equal(t, "compute id", lex.lastQuery)
}

func TestSearch_LexicalQueryTokenized(t *testing.T) {
	vec := &fakeVectorStore{}
	lex := &fakeLexicalIndex{}
	s := newTestSearcher(t, vec, lex)

	_, err := s.Search(context.Background(), "how is the chunkProvenance stored", Options{})
	require.NoError(t, err)
	assert.Equal(t, "how chunk provenance stored", lex.lastQuery)
}

func TestSearch_EmptyIndexesReturnEmptyResults(t *testing.T) {
	s := newTestSearcher(t, &fakeVectorStore{}, &fakeLexicalIndex{})

	resp, err := s.Search(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.False(t, resp.Degraded())
}
