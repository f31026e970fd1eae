// Package render formats plain-text tables for the command line.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const columnGap = "  "

// Table collects rows and lays them out in display-width aligned columns.
type Table struct {
	headers    []string
	rows       [][]string
	rightAlign map[int]bool
}

// NewTable starts a table with the given header row.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, rightAlign: map[int]bool{}}
}

// AlignRight right-aligns the given zero-based columns.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, col := range cols {
		t.rightAlign[col] = true
	}
	return t
}

// Append adds a row. Missing cells render empty.
func (t *Table) Append(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Lines renders the header and rows. Trailing spaces are trimmed.
func (t *Table) Lines() []string {
	widths := t.columnWidths()
	if len(widths) == 0 {
		return nil
	}
	lines := make([]string, 0, len(t.rows)+1)
	if len(t.headers) > 0 {
		lines = append(lines, t.renderRow(t.headers, widths))
	}
	for _, row := range t.rows {
		lines = append(lines, t.renderRow(row, widths))
	}
	return lines
}

// WriteTo writes the rendered lines to w.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range t.Lines() {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("failed to write output: %w", err)
		}
	}
	return total, nil
}

func (t *Table) columnWidths() []int {
	count := len(t.headers)
	for _, row := range t.rows {
		count = max(count, len(row))
	}
	widths := make([]int, count)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func (t *Table) renderRow(row []string, widths []int) string {
	cells := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		gap := strings.Repeat(" ", max(0, width-runewidth.StringWidth(cell)))
		if t.rightAlign[i] {
			cells[i] = gap + cell
		} else {
			cells[i] = cell + gap
		}
	}
	return strings.TrimRight(strings.Join(cells, columnGap), " ")
}

// Truncate shortens value to width display cells, marking the cut with "…".
func Truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	return runewidth.Truncate(value, width, "…")
}
