package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_BasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"exact file", "secret.txt", "secret.txt", false, true},
		{"exact file nested", "secret.txt", "sub/secret.txt", false, true},
		{"extension glob", "*.log", "debug.log", false, true},
		{"extension glob nested", "*.log", "logs/debug.log", false, true},
		{"no match", "*.log", "main.go", false, false},
		{"dir only matches dir", "build/", "build", true, true},
		{"dir only matches contents", "build/", "build/out.o", false, true},
		{"dir only skips file", "build/", "build", false, false},
		{"anchored root only", "/top.txt", "top.txt", false, true},
		{"anchored not nested", "/top.txt", "sub/top.txt", false, false},
		{"internal slash anchors", "doc/frotz", "doc/frotz", false, true},
		{"internal slash not nested", "doc/frotz", "a/doc/frotz", false, false},
		{"double star prefix", "**/temp", "a/b/temp", false, true},
		{"question mark", "file?.txt", "file1.txt", false, true},
		{"char class", "file[0-9].txt", "file7.txt", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Negation(t *testing.T) {
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("!important.log")

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("important.log", false))
}

func TestMatcher_CommentsAndBlanks(t *testing.T) {
	m := New()
	m.AddPattern("# a comment")
	m.AddPattern("")
	m.AddPattern("   ")
	m.AddPattern(`\#literal`)

	assert.False(t, m.Match("a comment", false))
	assert.True(t, m.Match("#literal", false))
}

func TestMatcher_NestedBase(t *testing.T) {
	m := New()
	m.AddPatternWithBase("*.tmp", "sub")

	assert.True(t, m.Match("sub/scratch.tmp", false))
	assert.False(t, m.Match("scratch.tmp", false), "base-scoped pattern must not apply at root")
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("# deps\nnode_modules/\n*.log\n!keep.log\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.True(t, m.Match("node_modules/left-pad/index.js", false))
	assert.True(t, m.Match("trace.log", false))
	assert.False(t, m.Match("keep.log", false))
	assert.False(t, m.Match("main.go", false))
}
