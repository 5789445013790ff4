package search

import (
	"sort"

	"github.com/quarrylabs/quarry/internal/store"
)

// Fusion combines the two candidate lists with weighted min-max score
// normalization:
//
//	fused(d) = w_v * norm_v(d) + w_l * norm_l(d)
//
// Each list's scores are normalized to [0, 1] independently; a chunk
// absent from a list contributes 0 for that signal. Identical inputs
// always produce identical output order.
type Fusion struct {
	VectorWeight  float64
	LexicalWeight float64
	MinScore      float64
}

// Fuse merges the candidate lists, drops results below MinScore, and
// returns at most limit results sorted by fused score descending with
// chunk ID as the tie-break.
func (f Fusion) Fuse(vec []*store.VectorResult, lex []*store.LexicalResult, limit int) []*Result {
	if len(vec) == 0 && len(lex) == 0 {
		return []*Result{}
	}

	merged := make(map[string]*Result, len(vec)+len(lex))

	vecNorm := normalizeScores(vectorScores(vec))
	for rank, r := range vec {
		merged[r.ID] = &Result{
			ChunkID:     r.ID,
			Score:       f.VectorWeight * vecNorm[rank],
			VectorScore: float64(r.Score),
			VectorRank:  rank + 1,
		}
	}

	lexNorm := normalizeScores(lexicalScores(lex))
	for rank, r := range lex {
		result, ok := merged[r.ID]
		if !ok {
			result = &Result{ChunkID: r.ID}
			merged[r.ID] = result
		} else {
			result.InBoth = true
		}
		result.Score += f.LexicalWeight * lexNorm[rank]
		result.LexicalScore = r.Score
		result.LexicalRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
	}

	results := make([]*Result, 0, len(merged))
	for _, r := range merged {
		if r.Score >= f.MinScore {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// normalizeScores maps scores to [0, 1] with min-max scaling. A list
// with no spread (single candidate, uniform scores) maps to all 1.0.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	normalized := make([]float64, len(scores))
	if maxScore == minScore {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}

	spread := maxScore - minScore
	for i, s := range scores {
		normalized[i] = (s - minScore) / spread
	}
	return normalized
}

func vectorScores(results []*store.VectorResult) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = float64(r.Score)
	}
	return scores
}

func lexicalScores(results []*store.LexicalResult) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	return scores
}
