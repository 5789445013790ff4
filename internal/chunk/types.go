// Package chunk splits documents into retrieval-sized chunks along
// structural boundaries: declarations for code, heading sections for
// markdown, cells for notebooks, and line windows for plain text.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Chunk size defaults.
const (
	DefaultMaxChunkTokens = 512
	DefaultOverlapTokens  = 64
	// CharsPerToken is the rough approximation used for token estimates.
	CharsPerToken = 4
	// IDHexLength is the length of the hex-encoded chunk ID.
	IDHexLength = 32
)

// ContentType classifies document content.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeNotebook ContentType = "notebook"
	ContentTypeText     ContentType = "text"
)

// Document is the unit of ingestion.
type Document struct {
	// SourceID identifies the document, typically a relative file path.
	SourceID string
	// ContentType selects the chunking strategy.
	ContentType ContentType
	// Content is the raw document bytes.
	Content []byte
	// LanguageHint names the programming language for code documents.
	// Empty means detect from SourceID extension.
	LanguageHint string
}

// Span locates a chunk within its source document.
type Span struct {
	// StartLine and EndLine are 1-indexed and inclusive.
	StartLine int
	EndLine   int
	// Cell is the notebook cell index, -1 for non-notebook chunks.
	Cell int
	// HeadingPath is the markdown heading hierarchy ("Intro > Setup"),
	// empty for non-markdown chunks.
	HeadingPath string
}

// Chunk is a retrievable unit of content.
type Chunk struct {
	// ID is the content hash of Text; identical text yields identical IDs
	// regardless of which document it came from.
	ID          string
	SourceID    string
	Span        Span
	ContentType ContentType
	Language    string
	Text        string
	TokenCount  int
}

// Options configures chunking behavior.
type Options struct {
	MaxChunkTokens int
	OverlapTokens  int
}

func (o Options) withDefaults() Options {
	if o.MaxChunkTokens == 0 {
		o.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if o.OverlapTokens == 0 {
		o.OverlapTokens = DefaultOverlapTokens
	}
	return o
}

// Chunker splits one kind of document content into chunks.
type Chunker interface {
	// Chunk splits the document. The degraded flag reports that the
	// structural strategy failed and a fallback was used.
	Chunk(ctx context.Context, doc *Document) (chunks []*Chunk, degraded bool, err error)
}

// ComputeID returns the chunk ID for the given text: hex SHA-256 of the
// exact bytes, truncated. The ID is a pure function of the text so the
// same content deduplicates across documents.
func ComputeID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:IDHexLength]
}

// estimateTokens estimates the token count of content.
func estimateTokens(content string) int {
	return len(content) / CharsPerToken
}

// lineSpan builds a span for a non-notebook chunk.
func lineSpan(startLine, endLine int) Span {
	return Span{StartLine: startLine, EndLine: endLine, Cell: -1}
}

// newChunk builds a chunk with its derived fields filled in.
func newChunk(doc *Document, text string, span Span, contentType ContentType, language string) *Chunk {
	return &Chunk{
		ID:          ComputeID(text),
		SourceID:    doc.SourceID,
		Span:        span,
		ContentType: contentType,
		Language:    language,
		Text:        text,
		TokenCount:  estimateTokens(text),
	}
}
