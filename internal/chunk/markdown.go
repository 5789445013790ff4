package chunk

import (
	"context"
	"regexp"
	"strings"
)

// MarkdownChunker splits markdown into heading-based sections. Each
// chunk is a heading plus its content up to the next heading of equal
// or higher level, and carries the heading path ("Intro > Setup") for
// citation.
type MarkdownChunker struct {
	options Options
}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// NewMarkdownChunker creates a markdown chunker.
func NewMarkdownChunker(opts Options) *MarkdownChunker {
	return &MarkdownChunker{options: opts.withDefaults()}
}

// Chunk splits a markdown document into section chunks.
func (c *MarkdownChunker) Chunk(_ context.Context, doc *Document) ([]*Chunk, bool, error) {
	content := string(doc.Content)
	if strings.TrimSpace(content) == "" {
		return nil, false, nil
	}

	lines := strings.Split(content, "\n")
	headings := findHeadings(lines)

	if len(headings) == 0 {
		chunks := windowLines(doc, content, 1, ContentTypeMarkdown, "markdown", c.options)
		return chunks, false, nil
	}

	var chunks []*Chunk

	// Preamble before the first heading becomes its own chunk.
	if first := headings[0].line; first > 0 {
		preamble := strings.Join(lines[:first], "\n")
		if strings.TrimSpace(preamble) != "" {
			span := lineSpan(1, first)
			chunks = append(chunks, newChunk(doc, preamble, span, ContentTypeMarkdown, "markdown"))
		}
	}

	for i, h := range headings {
		end := len(lines)
		for _, later := range headings[i+1:] {
			if later.level <= h.level {
				end = later.line
				break
			}
		}

		text := strings.TrimRight(strings.Join(lines[h.line:end], "\n"), "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		chunks = append(chunks, c.sectionChunks(doc, h, text, end)...)
	}

	return chunks, false, nil
}

type heading struct {
	line  int // 0-indexed line of the heading
	level int
	title string
	path  string
}

// findHeadings locates headings and builds each one's hierarchy path.
func findHeadings(lines []string) []heading {
	var headings []heading
	var stack [6]string
	inFence := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if inFence {
			continue
		}

		match := headingPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		level := len(match[1])
		title := strings.TrimSpace(match[2])

		stack[level-1] = title
		for j := level; j < 6; j++ {
			stack[j] = ""
		}

		var parts []string
		for j := 0; j < level; j++ {
			if stack[j] != "" {
				parts = append(parts, stack[j])
			}
		}

		headings = append(headings, heading{
			line:  i,
			level: level,
			title: title,
			path:  strings.Join(parts, " > "),
		})
	}

	return headings
}

// sectionChunks emits one chunk for a section, or several when the
// section exceeds the token budget. endLine is the 0-indexed exclusive
// end of the section.
func (c *MarkdownChunker) sectionChunks(doc *Document, h heading, text string, endLine int) []*Chunk {
	if estimateTokens(text) <= c.options.MaxChunkTokens {
		span := Span{StartLine: h.line + 1, EndLine: endLine, Cell: -1, HeadingPath: h.path}
		return []*Chunk{newChunk(doc, text, span, ContentTypeMarkdown, "markdown")}
	}
	return c.splitSection(doc, h, text)
}

// splitSection splits an oversized section at paragraph boundaries.
// Continuation chunks repeat the heading line so each keeps its context.
func (c *MarkdownChunker) splitSection(doc *Document, h heading, text string) []*Chunk {
	headingLine, _, _ := strings.Cut(text, "\n")
	paragraphs := splitParagraphs(text)

	var chunks []*Chunk
	var builder strings.Builder
	partStart := h.line + 1
	line := h.line + 1

	flush := func(endLine int) {
		body := strings.TrimSpace(builder.String())
		builder.Reset()
		if body == "" {
			return
		}
		if !strings.HasPrefix(body, headingLine) {
			body = headingLine + "\n\n" + body
		}
		span := Span{StartLine: partStart, EndLine: endLine, Cell: -1, HeadingPath: h.path}
		chunks = append(chunks, newChunk(doc, body, span, ContentTypeMarkdown, "markdown"))
	}

	for _, para := range paragraphs {
		paraLines := strings.Count(para, "\n") + 1
		if builder.Len() > 0 &&
			estimateTokens(builder.String())+estimateTokens(para) > c.options.MaxChunkTokens {
			flush(line - 1)
			partStart = line
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(para)
		line += paraLines + 1
	}
	flush(line - 1)

	return chunks
}

// splitParagraphs splits on blank lines, keeping fenced code blocks whole.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")

	var paragraphs []string
	var fence strings.Builder
	inFence := false

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		if inFence {
			fence.WriteString("\n\n")
			fence.WriteString(trimmed)
			if strings.Count(trimmed, "```")%2 == 1 {
				paragraphs = append(paragraphs, fence.String())
				fence.Reset()
				inFence = false
			}
			continue
		}

		if strings.Count(trimmed, "```")%2 == 1 {
			inFence = true
			fence.WriteString(trimmed)
			continue
		}

		paragraphs = append(paragraphs, trimmed)
	}

	if inFence {
		paragraphs = append(paragraphs, fence.String())
	}

	return paragraphs
}
