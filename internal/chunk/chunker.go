package chunk

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

// StructuralChunker dispatches documents to the chunker for their
// content type. The dispatch table is fixed at construction.
type StructuralChunker struct {
	chunkers map[ContentType]Chunker
	code     *CodeChunker
	logger   *slog.Logger
}

// NewStructuralChunker creates the dispatching chunker.
func NewStructuralChunker(opts Options, logger *slog.Logger) *StructuralChunker {
	if logger == nil {
		logger = slog.Default()
	}
	code := NewCodeChunker(opts)
	return &StructuralChunker{
		chunkers: map[ContentType]Chunker{
			ContentTypeCode:     code,
			ContentTypeMarkdown: NewMarkdownChunker(opts),
			ContentTypeNotebook: NewNotebookChunker(opts),
			ContentTypeText:     NewTextChunker(opts),
		},
		code:   code,
		logger: logger,
	}
}

// Close releases chunker resources.
func (s *StructuralChunker) Close() {
	if s.code != nil {
		s.code.Close()
	}
}

// Split chunks a document by its content type. A structural failure on
// one document degrades to plain-text chunking for that document only
// and is reported through the degraded flag, never as an error.
func (s *StructuralChunker) Split(ctx context.Context, doc *Document) ([]*Chunk, bool, error) {
	chunker, ok := s.chunkers[doc.ContentType]
	if !ok {
		chunker = s.chunkers[ContentTypeText]
	}

	chunks, degraded, err := chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	if degraded {
		s.logger.Warn("structural chunking degraded to text",
			"source", doc.SourceID,
			"content_type", doc.ContentType)
	}
	return chunks, degraded, nil
}

// DetectContentType infers the content type from a file path.
func DetectContentType(path string) ContentType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return ContentTypeMarkdown
	case ".ipynb":
		return ContentTypeNotebook
	case ".go", ".py", ".js", ".mjs", ".jsx", ".ts", ".tsx":
		return ContentTypeCode
	default:
		return ContentTypeText
	}
}
