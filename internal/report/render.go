// Package report renders run summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent = lipgloss.Color("#3AA99F")
	colorDim    = lipgloss.Color("#575653")
	colorGreen  = lipgloss.Color("#879A39")
	colorOrange = lipgloss.Color("#DA702C")
)

// Table is a bordered text table. The first column is left-aligned,
// the others right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer styles output for one writer. Colors are dropped automatically
// when the writer is not a terminal.
type Renderer struct {
	header lipgloss.Style
	dim    lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
}

// NewRenderer creates a Renderer for w.
func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		header: r.NewStyle().Bold(true).Foreground(colorAccent),
		dim:    r.NewStyle().Foreground(colorDim),
		ok:     r.NewStyle().Bold(true).Foreground(colorGreen),
		warn:   r.NewStyle().Bold(true).Foreground(colorOrange),
	}
}

// Success renders a highlighted status line.
func (r *Renderer) Success(text string) string {
	return r.ok.Render(text)
}

// Notice renders a warning-colored status line.
func (r *Renderer) Notice(text string) string {
	return r.warn.Render(text)
}

// RenderTable renders t with rounded borders.
func (r *Renderer) RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = max(widths[i], lipgloss.Width(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder

	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(r.header.Render(t.Title))
		b.WriteString("\n")
	}

	r.border(&b, widths, "╭", "┬", "╮")

	if len(t.Headers) > 0 {
		b.WriteString(r.dim.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(r.header.Render(fmt.Sprintf(" %-*s ", widths[i], h)))
			b.WriteString(r.dim.Render("│"))
		}
		b.WriteString("\n")
		r.border(&b, widths, "├", "┼", "┤")
	}

	for _, row := range t.Rows {
		b.WriteString(r.dim.Render("│"))
		for i := range numCols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i == 0 {
				b.WriteString(fmt.Sprintf(" %-*s ", widths[i], cell))
			} else {
				b.WriteString(fmt.Sprintf(" %*s ", widths[i], cell))
			}
			b.WriteString(r.dim.Render("│"))
		}
		b.WriteString("\n")
	}

	r.border(&b, widths, "╰", "┴", "╯")
	return b.String()
}

func (r *Renderer) border(b *strings.Builder, widths []int, left, mid, right string) {
	b.WriteString(r.dim.Render(left))
	for i, w := range widths {
		b.WriteString(r.dim.Render(strings.Repeat("─", w+2)))
		if i < len(widths)-1 {
			b.WriteString(r.dim.Render(mid))
		}
	}
	b.WriteString(r.dim.Render(right))
	b.WriteString("\n")
}
