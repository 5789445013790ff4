// Package store is the persistence layer: HNSW vector index, bleve
// BM25 lexical index, and SQLite chunk metadata with provenance.
package store

import (
	"context"

	"github.com/quarrylabs/quarry/internal/chunk"
)

// Document is the unit indexed by the lexical index.
type Document struct {
	ID   string // chunk ID
	Text string
}

// LexicalResult is a single BM25 search result.
type LexicalResult struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32 // normalized similarity, 0-1
}

// VectorStore provides approximate nearest neighbor search.
type VectorStore interface {
	// Upsert inserts vectors by ID, replacing existing entries.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns the k nearest neighbors ordered by descending score,
	// ties broken by ascending ID.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns every stored ID, for consistency checks.
	AllIDs() []string

	Contains(id string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// LexicalIndex provides BM25 keyword search.
type LexicalIndex interface {
	// Index adds documents, replacing any with the same ID.
	Index(ctx context.Context, docs []*Document) error

	// Search returns up to limit BM25-scored matches. An empty query
	// yields an empty result, not an error.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns every indexed ID, for consistency checks.
	AllIDs() ([]string, error)

	DocCount() (int, error)
	Close() error
}

// Provenance records one document location a chunk was observed at.
type Provenance struct {
	SourceID string
	Span     chunk.Span
}

// VectorConfig configures the HNSW vector store.
type VectorConfig struct {
	Dimensions     int
	M              int
	EfSearch       int
	EfConstruction int
}

// DefaultVectorConfig returns HNSW defaults for the given dimension.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// LexicalConfig configures the lexical index analyzer.
type LexicalConfig struct {
	StopWords      []string
	MinTokenLength int
}

// DefaultLexicalConfig returns the default analyzer configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords are high-frequency terms filtered from lexical
// indexing and query tokenization. The list mixes English glue words
// with programming keywords since indexed content is mostly code and
// docs.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "of", "to", "in", "is", "it",
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}
