// Package output renders command results as styled text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Formatter writes human or machine readable output.
type Formatter struct {
	writer io.Writer
	json   bool
	color  bool
}

// NewFormatter creates a formatter. JSON mode disables all styling.
func NewFormatter(w io.Writer, jsonMode bool) *Formatter {
	color := false
	if f, ok := w.(*os.File); ok && !jsonMode {
		color = isatty.IsTerminal(f.Fd()) && termenv.EnvColorProfile() != termenv.Ascii
	}
	return &Formatter{writer: w, json: jsonMode, color: color}
}

// JSONMode reports whether the formatter emits JSON.
func (f *Formatter) JSONMode() bool { return f.json }

// JSON marshals v with indentation and writes it.
func (f *Formatter) JSON(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	toolStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Title writes a styled section title.
func (f *Formatter) Title(text string) {
	if f.color {
		text = titleStyle.Render(text)
	}
	fmt.Fprintln(f.writer, text)
}

// Dim writes de-emphasized text.
func (f *Formatter) Dim(text string) {
	if f.color {
		text = dimStyle.Render(text)
	}
	fmt.Fprintln(f.writer, text)
}

// Tool writes a tool-invocation line.
func (f *Formatter) Tool(text string) {
	if f.color {
		text = toolStyle.Render(text)
	}
	fmt.Fprintln(f.writer, text)
}

// Error writes an error line.
func (f *Formatter) Error(text string) {
	if f.color {
		text = errStyle.Render(text)
	}
	fmt.Fprintln(f.writer, text)
}

// Textln outputs plain text with a newline
func (f *Formatter) Textln(format string, args ...interface{}) {
	fmt.Fprintf(f.writer, format+"\n", args...)
}

// Line outputs a blank line
func (f *Formatter) Line() {
	fmt.Fprintln(f.writer)
}

// Wrap word-wraps text to the terminal width.
func (f *Formatter) Wrap(text string) string {
	return wordwrap.String(text, TermWidth())
}

// TermWidth returns the terminal width, defaulting to 80 when stdout is not
// a terminal.
func TermWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// Table outputs tabular data in text format
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a new table with headers
func NewTable(w io.Writer, headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		writer:  w,
		headers: headers,
		rows:    [][]string{},
		widths:  widths,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cols ...string) {
	for i, c := range cols {
		if i < len(t.widths) && len(c) > t.widths[i] {
			t.widths[i] = len(c)
		}
	}
	t.rows = append(t.rows, cols)
}

// Render outputs the table
func (t *Table) Render() {
	formats := make([]string, len(t.widths))
	for i, w := range t.widths {
		formats[i] = fmt.Sprintf("%%-%ds", w)
	}
	rowFmt := "  " + strings.Join(formats, "  ") + "\n"

	headerVals := make([]interface{}, len(t.headers))
	for i, h := range t.headers {
		headerVals[i] = h
	}
	fmt.Fprintf(t.writer, rowFmt, headerVals...)

	sep := make([]interface{}, len(t.headers))
	for i, w := range t.widths {
		sep[i] = strings.Repeat("-", w)
	}
	fmt.Fprintf(t.writer, rowFmt, sep...)

	for _, row := range t.rows {
		vals := make([]interface{}, len(t.widths))
		for i := range t.widths {
			if i < len(row) {
				vals[i] = row[i]
			} else {
				vals[i] = ""
			}
		}
		fmt.Fprintf(t.writer, rowFmt, vals...)
	}
}
