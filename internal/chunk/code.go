package chunk

import (
	"context"
	"strings"
)

// CodeChunker splits source code at declaration boundaries using
// tree-sitter. Parse failures degrade to line-window chunking.
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	options  Options
}

// NewCodeChunker creates a code chunker.
func NewCodeChunker(opts Options) *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:   NewParser(registry),
		registry: registry,
		options:  opts.withDefaults(),
	}
}

// Close releases parser resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// Chunk splits a code document. The degraded flag is set when the
// document could not be parsed and line windows were used instead.
func (c *CodeChunker) Chunk(ctx context.Context, doc *Document) ([]*Chunk, bool, error) {
	if len(doc.Content) == 0 {
		return nil, false, nil
	}

	language := c.registry.DetectLanguage(doc.LanguageHint, doc.SourceID)
	if language == "" {
		chunks := windowLines(doc, string(doc.Content), 1, ContentTypeText, doc.LanguageHint, c.options)
		return chunks, true, nil
	}

	tree, err := c.parser.Parse(ctx, doc.Content, language)
	if err != nil {
		chunks := windowLines(doc, string(doc.Content), 1, ContentTypeText, language, c.options)
		return chunks, true, nil
	}

	config, _ := c.registry.GetByName(language)
	declTypes := make(map[string]bool, len(config.DeclarationTypes))
	for _, t := range config.DeclarationTypes {
		declTypes[t] = true
	}

	var chunks []*Chunk
	lastEnd := -1
	for _, node := range tree.Root.Children {
		if !declTypes[node.Type] {
			continue
		}
		// Skip nodes swallowed by a previous declaration (export wrappers).
		if int(node.StartRow) <= lastEnd {
			continue
		}
		chunks = append(chunks, c.chunkDeclaration(doc, tree, node, language, declTypes)...)
		lastEnd = int(node.EndRow)
	}

	if len(chunks) == 0 {
		// No declarations found (script-style file); window the whole thing.
		chunks = windowLines(doc, string(doc.Content), 1, ContentTypeCode, language, c.options)
	}

	return chunks, false, nil
}

// chunkDeclaration turns one declaration node into chunks, splitting
// oversized declarations at nested declarations and then line windows.
func (c *CodeChunker) chunkDeclaration(doc *Document, tree *Tree, node *Node, language string, declTypes map[string]bool) []*Chunk {
	text := node.Content(tree.Source)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if estimateTokens(text) <= c.options.MaxChunkTokens {
		span := lineSpan(int(node.StartRow)+1, int(node.EndRow)+1)
		return []*Chunk{newChunk(doc, text, span, ContentTypeCode, language)}
	}

	if nested := findNestedDeclarations(node, declTypes); len(nested) > 0 {
		var chunks []*Chunk
		for _, child := range nested {
			chunks = append(chunks, c.chunkDeclaration(doc, tree, child, language, declTypes)...)
		}
		if len(chunks) > 0 {
			return chunks
		}
	}

	startLine := int(node.StartRow) + 1
	return windowLines(doc, text, startLine, ContentTypeCode, language, c.options)
}

// findNestedDeclarations returns the shallowest declaration nodes strictly
// below the given node.
func findNestedDeclarations(node *Node, declTypes map[string]bool) []*Node {
	var result []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			if declTypes[child.Type] {
				result = append(result, child)
				continue
			}
			walk(child)
		}
	}
	walk(node)
	return result
}
