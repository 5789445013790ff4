// Package curate turns a fused ranking into a token-bounded,
// citation-annotated context package.
package curate

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/internal/chunk"
	"github.com/quarrylabs/quarry/internal/search"
	"github.com/quarrylabs/quarry/internal/store"
)

// DefaultTokenBudget bounds a package when the caller passes none.
const DefaultTokenBudget = 4096

// Entry is one selected chunk with its citations.
type Entry struct {
	ChunkID     string
	Text        string
	ContentType chunk.ContentType
	Language    string
	TokenCount  int
	Score       float64

	// Citations lists every known occurrence of this content, one per
	// source document it was observed in.
	Citations []string
}

// ContextPackage is the ordered, budgeted result of a query. Entries
// preserve the fused ranking order.
type ContextPackage struct {
	Query       string
	Entries     []Entry
	TotalTokens int
	TokenBudget int

	// BudgetExceeded is set when a single oversized top candidate was
	// admitted past the budget to keep the package non-empty.
	BudgetExceeded bool

	// Degraded mirrors the search response: results came from a single
	// signal.
	Degraded bool
}

// ChunkSource resolves chunk records and their provenance. The
// metadata store implements it.
type ChunkSource interface {
	GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error)
	GetProvenance(ctx context.Context, chunkID string) ([]store.Provenance, error)
}

// Curator selects a budget-bounded prefix of the fused ranking.
type Curator struct {
	source ChunkSource
}

// NewCurator creates a curator reading chunk text and provenance from
// the given source.
func NewCurator(source ChunkSource) *Curator {
	return &Curator{source: source}
}

// Curate selects a prefix of the ranking whose cumulative token count
// stays within the budget. A chunk that would overflow the budget is
// dropped whole, never truncated. When the first candidate alone
// exceeds the budget it is still included by itself, so a package is
// never empty while candidates exist.
func (c *Curator) Curate(ctx context.Context, query string, results []*search.Result, tokenBudget int) (*ContextPackage, error) {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	pkg := &ContextPackage{
		Query:       query,
		Entries:     []Entry{},
		TokenBudget: tokenBudget,
	}
	if len(results) == 0 {
		return pkg, nil
	}

	ids := make([]string, len(results))
	scores := make(map[string]float64, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
		scores[r.ChunkID] = r.Score
	}

	chunks, err := c.source.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving chunks: %w", err)
	}

	for i, ch := range chunks {
		if pkg.TotalTokens+ch.TokenCount > tokenBudget {
			if i == 0 {
				// Soft budget for a single-item package.
				pkg.BudgetExceeded = true
			} else {
				break
			}
		}

		citations, err := c.citations(ctx, ch)
		if err != nil {
			return nil, err
		}

		pkg.Entries = append(pkg.Entries, Entry{
			ChunkID:     ch.ID,
			Text:        ch.Text,
			ContentType: ch.ContentType,
			Language:    ch.Language,
			TokenCount:  ch.TokenCount,
			Score:       scores[ch.ID],
			Citations:   citations,
		})
		pkg.TotalTokens += ch.TokenCount

		if pkg.BudgetExceeded {
			break
		}
	}

	return pkg, nil
}

// citations builds one human-readable citation per known occurrence of
// the chunk, covering every document it was deduplicated across.
func (c *Curator) citations(ctx context.Context, ch *chunk.Chunk) ([]string, error) {
	prov, err := c.source.GetProvenance(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving provenance for %s: %w", ch.ID, err)
	}

	if len(prov) == 0 {
		return []string{FormatCitation(ch.SourceID, ch.Span)}, nil
	}

	citations := make([]string, 0, len(prov))
	for _, p := range prov {
		citations = append(citations, FormatCitation(p.SourceID, p.Span))
	}
	return citations, nil
}

// FormatCitation renders a span as "source (location)". Notebook cells
// cite the cell index, markdown sections cite the heading path, and
// everything else cites a line range.
func FormatCitation(sourceID string, span chunk.Span) string {
	var location string
	switch {
	case span.Cell >= 0:
		location = fmt.Sprintf("cell %d", span.Cell)
	case span.HeadingPath != "":
		location = span.HeadingPath
	case span.StartLine == span.EndLine:
		location = fmt.Sprintf("line %d", span.StartLine)
	default:
		location = fmt.Sprintf("lines %d-%d", span.StartLine, span.EndLine)
	}
	return fmt.Sprintf("%s (%s)", sourceID, location)
}

// Render formats the package as plain text for CLI output and
// downstream prompting.
func (p *ContextPackage) Render() string {
	var b strings.Builder
	for i, e := range p.Entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- [%d] %s\n", i+1, strings.Join(e.Citations, "; "))
		b.WriteString(e.Text)
		if !strings.HasSuffix(e.Text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
