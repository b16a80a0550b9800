package ui

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// TableView shows the children of one folder as table rows, one Cell per
// column. It implements explorer.Widget with the same folder-only policy as
// ListView.
type TableView struct {
	*rowView
	columns []Column
}

// NewTableView returns a table over b. No columns means DefaultColumns.
func NewTableView(b *visualizer.Bridge, theme Theme, columns ...Column) *TableView {
	if len(columns) == 0 {
		columns = DefaultColumns()
	}
	t := &TableView{rowView: newRowView(b, theme, true), columns: columns}
	t.reserved = 1
	return t
}

// Columns returns the configured columns.
func (t *TableView) Columns() []Column { return t.columns }

// Cells returns the cells of id's row.
func (t *TableView) Cells(id visualizer.ID) []Cell {
	p, ok := t.b.Proxy(id)
	if !ok {
		return nil
	}
	out := make([]Cell, len(t.columns))
	for i, col := range t.columns {
		if col.Cell != nil {
			out[i] = col.Cell(p)
		}
	}
	return out
}

// widths distributes width over the columns. Columns with Width 0 share
// what the fixed columns leave.
func (t *TableView) widths(width int) []int {
	out := make([]int, len(t.columns))
	fixed, flex := 0, 0
	for i, col := range t.columns {
		if col.Width > 0 {
			out[i] = col.Width
			fixed += col.Width
		} else {
			flex++
		}
	}
	// gutter plus one space between columns
	free := width - 1 - fixed - (len(t.columns) - 1)
	if flex > 0 {
		share := free / flex
		if share < 8 {
			share = 8
		}
		for i, col := range t.columns {
			if col.Width == 0 {
				out[i] = share
			}
		}
	}
	return out
}

// View renders the header row and the rows inside the viewport.
func (t *TableView) View() string {
	t.ensure()
	width := t.width
	if width <= 0 {
		width = 80
	}
	width--
	widths := t.widths(width)

	var sb strings.Builder
	titles := make([]string, len(t.columns))
	for i, col := range t.columns {
		titles[i] = align(col.Title, widths[i], col.Right)
	}
	sb.WriteString(t.theme.Header.Padding(0).Width(width).MaxWidth(width).Render(" " + strings.Join(titles, " ")))
	sb.WriteString("\n")

	if len(t.rows) == 0 {
		sb.WriteString(t.theme.MutedText.Render(" empty"))
		return sb.String()
	}
	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		id := t.rows[i]
		cells := t.Cells(id)
		parts := make([]string, len(cells))
		for j, c := range cells {
			parts[j] = c.Render(t.theme, widths[j], t.columns[j].Right)
		}
		row := renderGutter(t.rowView, id) + strings.Join(parts, " ")
		sb.WriteString(t.styleRow(id, row, width))
		sb.WriteString("\n")
	}
	if len(t.rows) > end-start {
		sb.WriteString(t.theme.MutedText.Render(fmt.Sprintf(" %d-%d of %d", start+1, end, len(t.rows))))
	}
	return strings.TrimRight(sb.String(), "\n")
}
