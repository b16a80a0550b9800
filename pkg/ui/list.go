package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// ListView shows the children of one folder, the explored context, one per
// row under a header naming the folder. It implements explorer.Widget.
type ListView struct {
	*rowView
	noDesc bool
}

// NewListView returns a list view over b.
func NewListView(b *visualizer.Bridge, theme Theme) *ListView {
	l := &ListView{rowView: newRowView(b, theme, true)}
	l.reserved = 1
	return l
}

// SetShowDescriptions toggles the description column.
func (l *ListView) SetShowDescriptions(show bool) { l.noDesc = !show }

// Folder returns the name of the shown folder, or "".
func (l *ListView) Folder() string {
	if p, ok := l.b.Proxy(l.root); ok {
		return p.Name()
	}
	return ""
}

// View renders the header and the rows inside the viewport.
func (l *ListView) View() string {
	l.ensure()
	width := l.width
	if width <= 0 {
		width = 80
	}

	var sb strings.Builder
	header := l.Folder()
	if header == "" {
		header = "(no folder)"
	}
	sb.WriteString(l.theme.Header.Width(width).MaxWidth(width).Render(truncate(header, width-2)))
	sb.WriteString("\n")

	if len(l.rows) == 0 {
		sb.WriteString(l.theme.MutedText.Render(" empty"))
		return sb.String()
	}
	start, end := l.visibleRange()
	for i := start; i < end; i++ {
		sb.WriteString(l.renderRow(l.rows[i], width-1))
		sb.WriteString("\n")
	}
	if len(l.rows) > end-start {
		sb.WriteString(l.theme.MutedText.Render(fmt.Sprintf(" %d-%d of %d", start+1, end, len(l.rows))))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (l *ListView) renderRow(id visualizer.ID, width int) string {
	p, ok := l.b.Proxy(id)
	if !ok {
		return ""
	}
	icon := l.theme.ExpandIndicator(p.IsLeaf(), false)
	left := renderGutter(l.rowView, id) + l.theme.SecondaryText.Render(icon) + " "
	fixed := 3

	desc := ""
	if !l.noDesc {
		desc = p.Description()
	}
	nameWidth := width - fixed - lipgloss.Width(desc) - 1
	if nameWidth < 5 {
		nameWidth, desc = 5, ""
	}
	name := truncateRunesHelper(p.Name(), nameWidth, "…")
	padding := width - fixed - lipgloss.Width(name) - lipgloss.Width(desc)
	if padding < 1 {
		padding = 1
	}
	row := left + l.theme.NameStyle(p.IsLeaf()).Render(name) + strings.Repeat(" ", padding) + l.theme.MutedText.Render(desc)
	return l.styleRow(id, row, width)
}
