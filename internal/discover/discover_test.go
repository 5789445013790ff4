package discover

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestFinder_WalksAndFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", []byte("# hello"))
	writeFile(t, root, "src/main.go", []byte("package main"))
	writeFile(t, root, "node_modules/pkg/index.js", []byte("x"))
	writeFile(t, root, ".hidden/notes.md", []byte("x"))
	writeFile(t, root, "server.key", []byte("PRIVATE"))
	writeFile(t, root, "logo.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})

	finder, err := New()
	require.NoError(t, err)

	files, err := finder.Find(context.Background(), root, Options{})
	require.NoError(t, err)

	got := paths(files)
	assert.ElementsMatch(t, []string{"README.md", "src/main.go"}, got)
}

func TestFinder_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("*.log\ngenerated/\n"))
	writeFile(t, root, "app.go", []byte("package app"))
	writeFile(t, root, "trace.log", []byte("line"))
	writeFile(t, root, "generated/api.go", []byte("package api"))
	writeFile(t, root, "sub/.gitignore", []byte("scratch.md\n"))
	writeFile(t, root, "sub/scratch.md", []byte("wip"))
	writeFile(t, root, "sub/keep.md", []byte("keep"))

	finder, err := New()
	require.NoError(t, err)

	files, err := finder.Find(context.Background(), root, Options{RespectGitignore: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"app.go", "sub/keep.md"}, paths(files))
}

func TestFinder_ExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", []byte("keep"))
	writeFile(t, root, "drop.md", []byte("drop"))
	writeFile(t, root, "archive/old.md", []byte("old"))

	finder, err := New()
	require.NoError(t, err)

	files, err := finder.Find(context.Background(), root, Options{
		ExcludePatterns: []string{"drop.md", "archive/"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"keep.md"}, paths(files))
}

func TestFinder_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.txt", []byte("ok"))
	writeFile(t, root, "big.txt", bytes.Repeat([]byte("x"), 128))

	finder, err := New()
	require.NoError(t, err)

	files, err := finder.Find(context.Background(), root, Options{MaxFileSize: 64})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"small.txt"}, paths(files))
}

func TestFinder_SingleFileRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "only.md", []byte("# doc"))

	finder, err := New()
	require.NoError(t, err)

	files, err := finder.Find(context.Background(), filepath.Join(root, "only.md"), Options{})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "only.md", files[0].Path)
}

func TestFinder_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", []byte("a"))

	finder, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = finder.Find(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
