package chunk

import (
	"context"
	"strings"
)

// TextChunker splits plain text into fixed line windows with overlap.
// It is also the fallback strategy for code that fails to parse.
type TextChunker struct {
	options Options
}

// NewTextChunker creates a text chunker.
func NewTextChunker(opts Options) *TextChunker {
	return &TextChunker{options: opts.withDefaults()}
}

// Chunk splits the document into line windows.
func (c *TextChunker) Chunk(_ context.Context, doc *Document) ([]*Chunk, bool, error) {
	chunks := windowLines(doc, string(doc.Content), 1, ContentTypeText, "", c.options)
	return chunks, false, nil
}

// windowLines splits content into line windows sized by the token budget.
// startLine is the 1-indexed line of the first content line in the source.
func windowLines(doc *Document, content string, startLine int, contentType ContentType, language string, opts Options) []*Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")

	// Assume ~80 chars per line when converting the token budget to lines.
	maxLines := (opts.MaxChunkTokens * CharsPerToken) / 80
	if maxLines < 20 {
		maxLines = 20
	}
	overlap := (opts.OverlapTokens * CharsPerToken) / 80
	if overlap < 2 {
		overlap = 2
	}

	var chunks []*Chunk
	for i := 0; i < len(lines); {
		end := i + maxLines
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(text) != "" {
			span := lineSpan(startLine+i, startLine+end-1)
			chunks = append(chunks, newChunk(doc, text, span, contentType, language))
		}

		if end >= len(lines) {
			break
		}
		i = end - overlap
	}

	return chunks
}
