package chunk

import (
	"context"
	"encoding/json"
	"strings"
)

// NotebookChunker splits Jupyter notebooks into one chunk per cell.
// Code cells keep their notebook language, markdown cells are chunked
// as markdown content. Cell order is preserved in the span.
type NotebookChunker struct {
	options Options
}

// NewNotebookChunker creates a notebook chunker.
func NewNotebookChunker(opts Options) *NotebookChunker {
	return &NotebookChunker{options: opts.withDefaults()}
}

// notebook mirrors the .ipynb JSON structure we care about.
type notebook struct {
	Cells    []notebookCell   `json:"cells"`
	Metadata notebookMetadata `json:"metadata"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

type notebookMetadata struct {
	Kernelspec struct {
		Language string `json:"language"`
	} `json:"kernelspec"`
	LanguageInfo struct {
		Name string `json:"name"`
	} `json:"language_info"`
}

// Chunk splits a notebook document into per-cell chunks. Invalid JSON
// degrades to plain-text windows.
func (c *NotebookChunker) Chunk(_ context.Context, doc *Document) ([]*Chunk, bool, error) {
	var nb notebook
	if err := json.Unmarshal(doc.Content, &nb); err != nil {
		chunks := windowLines(doc, string(doc.Content), 1, ContentTypeText, "", c.options)
		return chunks, true, nil
	}

	language := nb.Metadata.LanguageInfo.Name
	if language == "" {
		language = nb.Metadata.Kernelspec.Language
	}
	if language == "" {
		language = "python"
	}

	var chunks []*Chunk
	for i, cell := range nb.Cells {
		text := cellText(cell.Source)
		if strings.TrimSpace(text) == "" {
			continue
		}

		var contentType ContentType
		var cellLang string
		switch cell.CellType {
		case "code":
			contentType = ContentTypeCode
			cellLang = language
		case "markdown":
			contentType = ContentTypeMarkdown
			cellLang = "markdown"
		default:
			contentType = ContentTypeText
		}

		span := Span{
			StartLine: 1,
			EndLine:   strings.Count(text, "\n") + 1,
			Cell:      i,
		}
		chunks = append(chunks, newChunk(doc, text, span, contentType, cellLang))
	}

	return chunks, false, nil
}

// cellText joins a cell source, which may be a string or a line array.
func cellText(source json.RawMessage) string {
	if len(source) == 0 {
		return ""
	}

	var lines []string
	if err := json.Unmarshal(source, &lines); err == nil {
		return strings.Join(lines, "")
	}

	var s string
	if err := json.Unmarshal(source, &s); err == nil {
		return s
	}
	return ""
}
