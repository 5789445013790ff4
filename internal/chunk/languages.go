package chunk

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how to chunk one language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// DeclarationTypes are the AST node types treated as chunk boundaries
	// at the top level and as split points inside oversized declarations.
	DeclarationTypes []string
}

// LanguageRegistry maps language names and file extensions to grammars.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with the built-in languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.register(&LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		DeclarationTypes: []string{
			"function_declaration",
			"method_declaration",
			"type_declaration",
			"const_declaration",
			"var_declaration",
		},
	}, golang.GetLanguage())

	r.register(&LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		DeclarationTypes: []string{
			"function_definition",
			"class_definition",
			"decorated_definition",
		},
	}, python.GetLanguage())

	jsDecls := []string{
		"function_declaration",
		"class_declaration",
		"method_definition",
		"lexical_declaration",
		"variable_declaration",
		"export_statement",
	}
	r.register(&LanguageConfig{
		Name:             "javascript",
		Extensions:       []string{".js", ".mjs", ".jsx"},
		DeclarationTypes: jsDecls,
	}, javascript.GetLanguage())

	tsDecls := append([]string{
		"interface_declaration",
		"type_alias_declaration",
		"enum_declaration",
	}, jsDecls...)
	r.register(&LanguageConfig{
		Name:             "typescript",
		Extensions:       []string{".ts"},
		DeclarationTypes: tsDecls,
	}, typescript.GetLanguage())

	r.register(&LanguageConfig{
		Name:             "tsx",
		Extensions:       []string{".tsx"},
		DeclarationTypes: tsDecls,
	}, tsx.GetLanguage())

	return r
}

func (r *LanguageRegistry) register(config *LanguageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = lang
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

// GetByName returns the configuration for a language name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the grammar for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// DetectLanguage resolves a language from an explicit hint or the source
// path extension. Returns "" when neither matches a known language.
func (r *LanguageRegistry) DetectLanguage(hint, sourceID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if hint != "" {
		if _, ok := r.configs[hint]; ok {
			return hint
		}
	}
	ext := strings.ToLower(filepath.Ext(sourceID))
	return r.extToLang[ext]
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the shared language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
