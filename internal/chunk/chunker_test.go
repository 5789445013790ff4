package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeID_PureFunctionOfText(t *testing.T) {
	a := ComputeID("func main() {}")
	b := ComputeID("func main() {}")
	c := ComputeID("func main() {}\n")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "whitespace differences must change the ID")
	assert.Len(t, a, IDHexLength)
}

func TestComputeID_SameContentAcrossDocuments(t *testing.T) {
	docA := &Document{SourceID: "a.txt", ContentType: ContentTypeText}
	docB := &Document{SourceID: "b.txt", ContentType: ContentTypeText}

	chunkA := newChunk(docA, "shared content", lineSpan(1, 1), ContentTypeText, "")
	chunkB := newChunk(docB, "shared content", lineSpan(1, 1), ContentTypeText, "")

	assert.Equal(t, chunkA.ID, chunkB.ID)
	assert.NotEqual(t, chunkA.SourceID, chunkB.SourceID)
}

const goSource = `package demo

import "fmt"

// Greet says hello.
func Greet(name string) string {
	return fmt.Sprintf("hello %s", name)
}

func Farewell(name string) string {
	return fmt.Sprintf("goodbye %s", name)
}

type Greeter struct {
	Name string
}
`

func TestCodeChunker_SplitsAtDeclarations(t *testing.T) {
	c := NewCodeChunker(Options{})
	defer c.Close()

	doc := &Document{
		SourceID:    "demo/greet.go",
		ContentType: ContentTypeCode,
		Content:     []byte(goSource),
	}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, chunks, 3)

	assert.Contains(t, chunks[0].Text, "func Greet")
	assert.Contains(t, chunks[1].Text, "func Farewell")
	assert.Contains(t, chunks[2].Text, "type Greeter")

	for _, ch := range chunks {
		assert.Equal(t, ContentTypeCode, ch.ContentType)
		assert.Equal(t, "go", ch.Language)
		assert.Equal(t, -1, ch.Span.Cell)
		assert.Positive(t, ch.Span.StartLine)
		assert.GreaterOrEqual(t, ch.Span.EndLine, ch.Span.StartLine)
	}
}

func TestCodeChunker_Deterministic(t *testing.T) {
	c := NewCodeChunker(Options{})
	defer c.Close()

	doc := &Document{SourceID: "demo/greet.go", ContentType: ContentTypeCode, Content: []byte(goSource)}

	first, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	second, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Span, second[i].Span)
	}
}

func TestCodeChunker_ParseFailureDegradesToText(t *testing.T) {
	c := NewCodeChunker(Options{})
	defer c.Close()

	doc := &Document{
		SourceID:    "broken.go",
		ContentType: ContentTypeCode,
		Content:     []byte("func func func {{{ not go at all ]]]"),
	}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, degraded)
	require.NotEmpty(t, chunks)
	assert.Equal(t, ContentTypeText, chunks[0].ContentType)
}

func TestCodeChunker_UnknownExtensionDegrades(t *testing.T) {
	c := NewCodeChunker(Options{})
	defer c.Close()

	doc := &Document{SourceID: "prog.zig", ContentType: ContentTypeCode, Content: []byte("const x = 1;")}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.NotEmpty(t, chunks)
}

func TestMarkdownChunker_ThreeHeadings(t *testing.T) {
	md := `# Guide

Overview paragraph.

## Install

Run the installer.

## Usage

Call the binary.`

	c := NewMarkdownChunker(Options{})
	doc := &Document{SourceID: "guide.md", ContentType: ContentTypeMarkdown, Content: []byte(md)}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, chunks, 3)

	paths := map[string]bool{}
	for _, ch := range chunks {
		paths[ch.Span.HeadingPath] = true
		assert.Equal(t, ContentTypeMarkdown, ch.ContentType)
	}
	assert.Len(t, paths, 3, "heading paths must be distinct")
	assert.True(t, paths["Guide"])
	assert.True(t, paths["Guide > Install"])
	assert.True(t, paths["Guide > Usage"])
}

func TestMarkdownChunker_PreambleBecomesChunk(t *testing.T) {
	md := `Intro text before any heading.

# First

Body.`

	c := NewMarkdownChunker(Options{})
	doc := &Document{SourceID: "doc.md", ContentType: ContentTypeMarkdown, Content: []byte(md)}

	chunks, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "Intro text")
	assert.Empty(t, chunks[0].Span.HeadingPath)
	assert.Equal(t, 1, chunks[0].Span.StartLine)
}

func TestMarkdownChunker_HeadingInsideFenceIgnored(t *testing.T) {
	md := "# Real\n\n```\n# not a heading\n```\n"

	c := NewMarkdownChunker(Options{})
	doc := &Document{SourceID: "doc.md", ContentType: ContentTypeMarkdown, Content: []byte(md)}

	chunks, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Real", chunks[0].Span.HeadingPath)
}

func TestMarkdownChunker_OversizedSectionSplitsByParagraph(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Big\n\n")
	for i := 0; i < 40; i++ {
		sb.WriteString(strings.Repeat("lorem ipsum dolor sit amet ", 10))
		sb.WriteString("\n\n")
	}

	c := NewMarkdownChunker(Options{MaxChunkTokens: 256})
	doc := &Document{SourceID: "big.md", ContentType: ContentTypeMarkdown, Content: []byte(sb.String())}

	chunks, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.Equal(t, "Big", ch.Span.HeadingPath)
		assert.True(t, strings.HasPrefix(ch.Text, "# Big"), "each part keeps the heading context")
	}
}

func notebookJSON(cells string) []byte {
	return []byte(`{
		"cells": [` + cells + `],
		"metadata": {"language_info": {"name": "python"}},
		"nbformat": 4
	}`)
}

func TestNotebookChunker_OneChunkPerCell(t *testing.T) {
	var cells []string
	for i := 0; i < 6; i++ {
		cells = append(cells, `{"cell_type": "code", "source": ["print(`+strings.Repeat("1", i+1)+`)\n"]}`)
	}
	for i := 0; i < 4; i++ {
		cells = append(cells, `{"cell_type": "markdown", "source": ["## Section `+strings.Repeat("x", i+1)+`\n"]}`)
	}

	c := NewNotebookChunker(Options{})
	doc := &Document{
		SourceID:    "analysis.ipynb",
		ContentType: ContentTypeNotebook,
		Content:     notebookJSON(strings.Join(cells, ",")),
	}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, chunks, 10)

	codeCount, mdCount := 0, 0
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Span.Cell, "cell order preserved")
		switch ch.ContentType {
		case ContentTypeCode:
			codeCount++
			assert.Equal(t, "python", ch.Language)
		case ContentTypeMarkdown:
			mdCount++
		}
	}
	assert.Equal(t, 6, codeCount)
	assert.Equal(t, 4, mdCount)
}

func TestNotebookChunker_StringSource(t *testing.T) {
	c := NewNotebookChunker(Options{})
	doc := &Document{
		SourceID:    "nb.ipynb",
		ContentType: ContentTypeNotebook,
		Content:     notebookJSON(`{"cell_type": "code", "source": "x = 1"}`),
	}

	chunks, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "x = 1", chunks[0].Text)
}

func TestNotebookChunker_InvalidJSONDegrades(t *testing.T) {
	c := NewNotebookChunker(Options{})
	doc := &Document{SourceID: "bad.ipynb", ContentType: ContentTypeNotebook, Content: []byte("not json")}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.NotEmpty(t, chunks)
}

func TestTextChunker_WindowsWithOverlap(t *testing.T) {
	var lines []string
	for i := 0; i < 60; i++ {
		lines = append(lines, strings.Repeat("word ", 16))
	}

	c := NewTextChunker(Options{MaxChunkTokens: 400, OverlapTokens: 64})
	doc := &Document{SourceID: "notes.txt", ContentType: ContentTypeText, Content: []byte(strings.Join(lines, "\n"))}

	chunks, degraded, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Greater(t, len(chunks), 1)

	// Adjacent windows overlap.
	assert.Less(t, chunks[1].Span.StartLine, chunks[0].Span.EndLine)
	assert.Equal(t, 1, chunks[0].Span.StartLine)
}

func TestTextChunker_EmptyDocument(t *testing.T) {
	c := NewTextChunker(Options{})
	doc := &Document{SourceID: "empty.txt", ContentType: ContentTypeText, Content: []byte("  \n ")}

	chunks, _, err := c.Chunk(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStructuralChunker_DispatchesByContentType(t *testing.T) {
	s := NewStructuralChunker(Options{}, nil)
	defer s.Close()

	tests := []struct {
		name string
		doc  *Document
		want ContentType
	}{
		{"code", &Document{SourceID: "a.go", ContentType: ContentTypeCode, Content: []byte(goSource)}, ContentTypeCode},
		{"markdown", &Document{SourceID: "a.md", ContentType: ContentTypeMarkdown, Content: []byte("# T\n\nbody")}, ContentTypeMarkdown},
		{"text", &Document{SourceID: "a.txt", ContentType: ContentTypeText, Content: []byte("plain")}, ContentTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, _, err := s.Split(context.Background(), tt.doc)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tt.want, chunks[0].ContentType)
		})
	}
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, ContentTypeCode, DetectContentType("pkg/main.go"))
	assert.Equal(t, ContentTypeCode, DetectContentType("app.TS"))
	assert.Equal(t, ContentTypeMarkdown, DetectContentType("README.md"))
	assert.Equal(t, ContentTypeNotebook, DetectContentType("analysis.ipynb"))
	assert.Equal(t, ContentTypeText, DetectContentType("LICENSE"))
}
