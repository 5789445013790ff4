// Package output provides consistent CLI output formatting. Color is
// enabled only when writing to a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI codes used when the destination is a terminal.
const (
	codeReset  = "\033[0m"
	codeGreen  = "\033[32m"
	codeYellow = "\033[33m"
	codeRed    = "\033[31m"
	codeDim    = "\033[2m"
	codeBold   = "\033[1m"
)

// Writer provides formatted CLI output.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a writer, enabling color when out is a terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, useColor: isTerminal(out)}
}

// NewPlain creates a writer with color disabled regardless of the
// destination.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (w *Writer) paint(code, s string) string {
	if !w.useColor {
		return s
	}
	return code + s + codeReset
}

// Printf writes formatted text. Write errors on console output are
// ignored.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Println writes a line.
func (w *Writer) Println(args ...any) {
	_, _ = fmt.Fprintln(w.out, args...)
}

// Successf prints a green success line.
func (w *Writer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.paint(codeGreen, fmt.Sprintf(format, args...)))
}

// Warningf prints a yellow warning line.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.paint(codeYellow, fmt.Sprintf(format, args...)))
}

// Errorf prints a red error line.
func (w *Writer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.paint(codeRed, fmt.Sprintf(format, args...)))
}

// Headerf prints a bold heading line.
func (w *Writer) Headerf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.paint(codeBold, fmt.Sprintf(format, args...)))
}

// Dimf prints a dimmed detail line.
func (w *Writer) Dimf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.paint(codeDim, fmt.Sprintf(format, args...)))
}

// Field prints an aligned "name: value" detail row.
func (w *Writer) Field(name string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-14s %v\n", name+":", value)
}

// Table prints rows with left-aligned columns separated by two spaces.
func (w *Writer) Table(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string, code string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i < len(widths) {
				parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
			} else {
				parts[i] = cell
			}
		}
		line := strings.TrimRight(strings.Join(parts, "  "), " ")
		if code != "" {
			line = w.paint(code, line)
		}
		_, _ = fmt.Fprintln(w.out, line)
	}

	writeRow(header, codeBold)
	for _, row := range rows {
		writeRow(row, "")
	}
}
