package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/store"
)

func vecResult(id string, score float32) *store.VectorResult {
	return &store.VectorResult{ID: id, Score: score}
}

func lexResult(id string, score float64, terms ...string) *store.LexicalResult {
	return &store.LexicalResult{ID: id, Score: score, MatchedTerms: terms}
}

func TestFuse_BothSignalsBoostSharedChunk(t *testing.T) {
	f := Fusion{VectorWeight: 0.6, LexicalWeight: 0.4}

	results := f.Fuse(
		[]*store.VectorResult{vecResult("shared", 0.9), vecResult("veconly", 0.5)},
		[]*store.LexicalResult{lexResult("shared", 12.0, "shared"), lexResult("lexonly", 4.0)},
		10,
	)

	require.Len(t, results, 3)
	assert.Equal(t, "shared", results[0].ChunkID)
	assert.True(t, results[0].InBoth)
	// Top of both normalized lists: 0.6*1.0 + 0.4*1.0.
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, []string{"shared"}, results[0].MatchedTerms)
}

func TestFuse_SharedChunkNeverRanksBelowSingleSignalPeer(t *testing.T) {
	// Chunks with identical raw scores in a list normalize identically,
	// so the one also present in the other list must come out ahead.
	tests := []struct {
		name string
		vec  []*store.VectorResult
		lex  []*store.LexicalResult
	}{
		{
			"equal vector scores, one also lexical",
			[]*store.VectorResult{vecResult("both", 0.5), vecResult("veconly", 0.5)},
			[]*store.LexicalResult{lexResult("both", 7.0)},
		},
		{
			"equal lexical scores, one also vector",
			[]*store.VectorResult{vecResult("both", 0.5)},
			[]*store.LexicalResult{lexResult("both", 7.0), lexResult("lexonly", 7.0)},
		},
	}

	f := Fusion{VectorWeight: 0.6, LexicalWeight: 0.4}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := f.Fuse(tt.vec, tt.lex, 10)
			require.Len(t, results, 2)
			assert.Equal(t, "both", results[0].ChunkID)
			assert.True(t, results[0].InBoth)
			assert.Greater(t, results[0].Score, results[1].Score)
		})
	}
}

func TestFuse_AbsentSignalContributesZero(t *testing.T) {
	f := Fusion{VectorWeight: 0.6, LexicalWeight: 0.4}

	results := f.Fuse(
		[]*store.VectorResult{vecResult("a", 0.9), vecResult("b", 0.3)},
		nil,
		10,
	)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 0.6, results[0].Score, 1e-9)
	assert.Zero(t, results[0].LexicalRank)
	assert.InDelta(t, 0.0, results[1].Score, 1e-9)
}

func TestFuse_TieBreaksByChunkID(t *testing.T) {
	f := Fusion{VectorWeight: 0.5, LexicalWeight: 0.5}

	// Two chunks with identical scores in the same list normalize
	// identically, so order must fall back to ID.
	results := f.Fuse(
		[]*store.VectorResult{vecResult("zzz", 0.7), vecResult("aaa", 0.7)},
		nil,
		10,
	)

	require.Len(t, results, 2)
	assert.Equal(t, "aaa", results[0].ChunkID)
	assert.Equal(t, "zzz", results[1].ChunkID)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestFuse_MinScoreFloor(t *testing.T) {
	f := Fusion{VectorWeight: 1.0, LexicalWeight: 0.0, MinScore: 0.5}

	results := f.Fuse(
		[]*store.VectorResult{
			vecResult("high", 0.9),
			vecResult("mid", 0.6),
			vecResult("low", 0.1),
		},
		nil,
		10,
	)

	// "low" normalizes to 0 and falls under the floor.
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	assert.Equal(t, []string{"high", "mid"}, ids)
}

func TestFuse_LimitTruncates(t *testing.T) {
	f := Fusion{VectorWeight: 1.0}

	results := f.Fuse(
		[]*store.VectorResult{vecResult("a", 0.9), vecResult("b", 0.8), vecResult("c", 0.7)},
		nil,
		2,
	)

	assert.Len(t, results, 2)
}

func TestFuse_EmptyInputs(t *testing.T) {
	f := Fusion{VectorWeight: 0.6, LexicalWeight: 0.4}
	results := f.Fuse(nil, nil, 10)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuse_Deterministic(t *testing.T) {
	f := Fusion{VectorWeight: 0.6, LexicalWeight: 0.4}
	vec := []*store.VectorResult{vecResult("a", 0.8), vecResult("b", 0.6), vecResult("c", 0.4)}
	lex := []*store.LexicalResult{lexResult("b", 9.0), lexResult("d", 5.0)}

	first := f.Fuse(vec, lex, 10)
	for i := 0; i < 5; i++ {
		again := f.Fuse(vec, lex, 10)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].ChunkID, again[j].ChunkID)
			assert.Equal(t, first[j].Score, again[j].Score)
		}
	}
}

func TestNormalizeScores(t *testing.T) {
	assert.Nil(t, normalizeScores(nil))
	assert.Equal(t, []float64{1.0}, normalizeScores([]float64{42}))
	assert.Equal(t, []float64{1.0, 1.0}, normalizeScores([]float64{3, 3}))
	assert.Equal(t, []float64{1.0, 0.5, 0.0}, normalizeScores([]float64{10, 6, 2}))
}
