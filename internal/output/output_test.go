package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_NoColorForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Successf("done %d", 3)
	w.Errorf("bad")

	out := buf.String()
	assert.Contains(t, out, "done 3\n")
	assert.Contains(t, out, "bad\n")
	assert.NotContains(t, out, "\033[")
}

func TestWriter_Field(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Field("Dimension", 768)
	assert.Equal(t, "  Dimension:     768\n", buf.String())
}

func TestWriter_TableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Table([]string{"NAME", "CHUNKS"}, [][]string{
		{"handbook", "3"},
		{"longer-name", "120"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "NAME         CHUNKS", lines[0])
	assert.Equal(t, "handbook     3", lines[1])
	assert.Equal(t, "longer-name  120", lines[2])
}
