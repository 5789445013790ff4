// Package discover finds ingestible files under document roots. It
// honors .gitignore files, skips binaries, oversized files, and
// sensitive files such as keys and credentials.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarrylabs/quarry/internal/gitignore"
)

// DefaultMaxFileSize skips files unlikely to be source or prose.
const DefaultMaxFileSize = 10 << 20

// matcherCacheSize bounds the per-directory gitignore matcher cache.
const matcherCacheSize = 256

// File describes a discovered ingestible file.
type File struct {
	// Path is relative to the walked root, slash-separated.
	Path string
	// AbsPath is the absolute filesystem path.
	AbsPath string
	// Size in bytes.
	Size int64
}

// Options controls a discovery walk.
type Options struct {
	// MaxFileSize in bytes; zero means DefaultMaxFileSize.
	MaxFileSize int64
	// ExcludePatterns are extra gitignore-style patterns to skip.
	ExcludePatterns []string
	// RespectGitignore applies .gitignore files found during the walk.
	RespectGitignore bool
}

// Finder walks directories and reports ingestible files. Gitignore
// matchers are cached per directory across walks.
type Finder struct {
	matchers *lru.Cache[string, *gitignore.Matcher]
	mu       sync.RWMutex
}

func New() (*Finder, error) {
	cache, err := lru.New[string, *gitignore.Matcher](matcherCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create matcher cache: %w", err)
	}
	return &Finder{matchers: cache}, nil
}

// Find walks root and returns every ingestible file, in walk order.
// A non-directory root is returned as a single file if it qualifies.
func (f *Finder) Find(ctx context.Context, root string, opts Options) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var extra *gitignore.Matcher
	if len(opts.ExcludePatterns) > 0 {
		extra = gitignore.New()
		for _, p := range opts.ExcludePatterns {
			extra.AddPattern(p)
		}
	}

	if !info.IsDir() {
		rel := filepath.Base(absRoot)
		if f.admissible(rel, absRoot, info.Size(), maxSize, extra) {
			return []File{{Path: rel, AbsPath: absRoot, Size: info.Size()}}, nil
		}
		return nil, nil
	}

	var files []File
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if f.excludeDir(rel, d.Name(), absRoot, opts, extra) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !f.admissible(rel, path, info.Size(), maxSize, extra) {
			return nil
		}
		if opts.RespectGitignore && f.ignored(rel, absRoot) {
			return nil
		}

		files = append(files, File{Path: rel, AbsPath: path, Size: info.Size()})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return files, nil
}

func (f *Finder) excludeDir(rel, name, absRoot string, opts Options, extra *gitignore.Matcher) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, skip := range defaultExcludeDirs {
		if name == skip {
			return true
		}
	}
	if extra != nil && extra.Match(rel, true) {
		return true
	}
	if opts.RespectGitignore && f.ignored(rel, absRoot) {
		return true
	}
	return false
}

func (f *Finder) admissible(rel, absPath string, size, maxSize int64, extra *gitignore.Matcher) bool {
	name := filepath.Base(rel)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if size > maxSize {
		return false
	}
	for _, pattern := range sensitiveFilePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return false
		}
	}
	if extra != nil && extra.Match(rel, false) {
		return false
	}
	return !isBinary(absPath)
}

// ignored walks the directory chain from the root to the file's parent,
// consulting each .gitignore along the way.
func (f *Finder) ignored(rel, absRoot string) bool {
	if m := f.matcher(absRoot, ""); m != nil && m.Match(rel, false) {
		return true
	}

	dir := filepath.Dir(rel)
	if dir == "." {
		return false
	}
	current := absRoot
	base := ""
	for _, part := range strings.Split(dir, "/") {
		current = filepath.Join(current, part)
		if base == "" {
			base = part
		} else {
			base = base + "/" + part
		}
		if m := f.matcher(current, base); m != nil && m.Match(rel, false) {
			return true
		}
	}
	return false
}

// matcher returns the cached gitignore matcher for dir, parsing the
// directory's .gitignore on first use. Nil when the file is absent.
func (f *Finder) matcher(dir, base string) *gitignore.Matcher {
	f.mu.RLock()
	m, ok := f.matchers.Get(dir)
	f.mu.RUnlock()
	if ok {
		return m
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	m = gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}

	f.mu.Lock()
	f.matchers.Add(dir, m)
	f.mu.Unlock()
	return m
}

// isBinary sniffs the first 512 bytes for a NUL.
func isBinary(path string) bool {
	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = fh.Close() }()

	buf := make([]byte, 512)
	n, err := fh.Read(buf)
	if err != nil {
		return false
	}
	return bytes.ContainsRune(buf[:n], 0)
}

var defaultExcludeDirs = []string{
	"node_modules",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"target",
}

// sensitiveFilePatterns are never ingested regardless of other options.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}
