// Package search runs vector and lexical sub-searches concurrently
// and fuses their candidate lists with weighted score normalization.
package search

import "github.com/quarrylabs/quarry/internal/config"

// Options tunes a single query. Zero values fall back to the
// configured defaults.
type Options struct {
	// Limit is the maximum number of fused results to return.
	Limit int

	// VectorWeight and LexicalWeight override the configured fusion
	// weights. Both must be set together and sum to 1.0.
	VectorWeight  float64
	LexicalWeight float64

	// MinScore drops fused results scoring below the floor.
	MinScore float64

	// CandidatePoolVector and CandidatePoolLexical size the per-signal
	// candidate lists fetched before fusion.
	CandidatePoolVector  int
	CandidatePoolLexical int

	// LexicalQuery, when set, replaces the query text for the lexical
	// sub-search only. Useful for exact identifier lookups alongside a
	// natural-language vector query.
	LexicalQuery string
}

// applyDefaults fills unset options from configuration.
func (o Options) applyDefaults(cfg config.SearchConfig) Options {
	if o.Limit <= 0 {
		o.Limit = cfg.MaxResults
	}
	if o.VectorWeight == 0 && o.LexicalWeight == 0 {
		o.VectorWeight = cfg.VectorWeight
		o.LexicalWeight = cfg.LexicalWeight
	}
	if o.MinScore == 0 {
		o.MinScore = cfg.MinScore
	}
	if o.CandidatePoolVector <= 0 {
		o.CandidatePoolVector = cfg.CandidatePoolVector
	}
	if o.CandidatePoolLexical <= 0 {
		o.CandidatePoolLexical = cfg.CandidatePoolLexical
	}
	return o
}

// Result is one fused search hit.
type Result struct {
	ChunkID string

	// Score is the fused score in [0, 1].
	Score float64

	// Per-signal detail. Rank is 1-indexed within its candidate list,
	// 0 when the chunk was absent from that list.
	VectorScore  float64
	VectorRank   int
	LexicalScore float64
	LexicalRank  int

	// InBoth marks chunks found by both signals.
	InBoth bool

	// MatchedTerms are the lexical terms that hit, for highlighting.
	MatchedTerms []string
}

// Response carries fused results plus degradation markers for the
// sub-searches that failed.
type Response struct {
	Results []*Result

	// VectorDegraded and LexicalDegraded report that the named signal
	// failed and results come from the other signal alone.
	VectorDegraded  bool
	LexicalDegraded bool
}

// Degraded reports whether either sub-search failed.
func (r *Response) Degraded() bool {
	return r.VectorDegraded || r.LexicalDegraded
}
