// tree.go - Hierarchical tree view over a visualizer bridge
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// TreeView shows every expanded level under the root with branch prefixes.
// It implements explorer.Widget and remembers user expansion in an
// ExpansionState.
type TreeView struct {
	*rowView

	title   string
	state   *ExpansionState
	checked map[visualizer.ID]bool
	noDesc  bool
}

// TreeOption configures a TreeView.
type TreeOption func(*TreeView)

// WithExpansionState makes the tree restore and record expansion in s.
func WithExpansionState(s *ExpansionState) TreeOption {
	return func(t *TreeView) { t.state = s }
}

// WithTitle sets the text shown when the tree has no rows.
func WithTitle(title string) TreeOption {
	return func(t *TreeView) { t.title = title }
}

// WithoutDescriptions hides the right-aligned description column.
func WithoutDescriptions() TreeOption {
	return func(t *TreeView) { t.noDesc = true }
}

// NewTreeView returns a tree view over b.
func NewTreeView(b *visualizer.Bridge, theme Theme, opts ...TreeOption) *TreeView {
	t := &TreeView{
		rowView: newRowView(b, theme, false),
		title:   "Tree",
		checked: make(map[visualizer.ID]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.onRebuild = t.restore
	t.OnExpansionChanged(t.remember)
	return t
}

// SetRoot implements explorer.Widget.
func (t *TreeView) SetRoot(root visualizer.ID) {
	t.checked = make(map[visualizer.ID]bool)
	t.rowView.SetRoot(root)
}

// key returns id's expansion-state key.
func (t *TreeView) key(id visualizer.ID) string {
	rp, ok := t.b.Proxy(t.root)
	if !ok {
		return ""
	}
	return Key(append([]string{rp.Name()}, t.b.NamePath(id)...))
}

// restore expands id once per root when the saved state says so.
func (t *TreeView) restore(id visualizer.ID) {
	if t.state == nil || t.checked[id] {
		return
	}
	t.checked[id] = true
	p, ok := t.b.Proxy(id)
	if !ok || p.IsLeaf() || p.Expanded() {
		return
	}
	if expanded, ok := t.state.Lookup(t.key(id)); ok && expanded {
		_ = t.b.Expand(id)
	}
}

func (t *TreeView) remember(_ context.Context, id visualizer.ID, expanded bool) {
	if t.state == nil {
		return
	}
	t.state.Set(t.key(id), expanded)
	t.checked[id] = true
}

// ExpandAll expands every folder below the cursor row, or below the root
// when there is no cursor, up to depth levels. Listeners are notified
// once per folder.
func (t *TreeView) ExpandAll(ctx context.Context, depth int) {
	start := t.Cursor()
	if start == visualizer.NoID {
		start = t.root
	}
	var walk func(id visualizer.ID, level int)
	walk = func(id visualizer.ID, level int) {
		if level > depth {
			return
		}
		for _, c := range t.b.Children(id) {
			p, ok := t.b.Proxy(c)
			if !ok || p.IsLeaf() {
				continue
			}
			if !p.Expanded() {
				t.SetExpanded(c, true)
				t.fireExpansion(ctx, c, true)
			}
			walk(c, level+1)
		}
	}
	if p, ok := t.b.Proxy(start); ok && start != t.root && !p.IsLeaf() && !p.Expanded() {
		t.SetExpanded(start, true)
		t.fireExpansion(ctx, start, true)
	}
	walk(start, 1)
}

// CollapseAll collapses every expanded row.
func (t *TreeView) CollapseAll(ctx context.Context) {
	for _, id := range t.Rows() {
		if p, ok := t.b.Proxy(id); ok && p.Expanded() && !p.IsLeaf() {
			t.SetExpanded(id, false)
			t.fireExpansion(ctx, id, false)
		}
	}
	t.ensure()
}

// View renders the rows inside the viewport.
func (t *TreeView) View() string {
	t.ensure()
	if len(t.rows) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		sb.WriteString(t.renderRow(t.rows[i]))
		sb.WriteString("\n")
	}
	if len(t.rows) > end-start {
		sb.WriteString(t.renderPositionIndicator(start, end))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (t *TreeView) renderEmptyState() string {
	var sb strings.Builder
	sb.WriteString(t.theme.PrimaryBold.Render(t.title))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("Nothing to show."))
	return sb.String()
}

// renderPositionIndicator shows "start-end of total" when scrolling.
func (t *TreeView) renderPositionIndicator(start, end int) string {
	return t.theme.MutedText.Render(fmt.Sprintf(" %d-%d of %d", start+1, end, len(t.rows)))
}

// renderRow renders one row: [gutter] [tree-prefix] [indicator] [name] ... [description]
func (t *TreeView) renderRow(id visualizer.ID) string {
	p, ok := t.b.Proxy(id)
	if !ok {
		return ""
	}
	width := t.width
	if width <= 0 {
		width = 80
	}
	// Reduce width by 1 to prevent terminal wrapping on the exact edge
	width--

	var left strings.Builder
	left.WriteString(t.gutter(id))
	prefix := t.buildTreePrefix(id)
	left.WriteString(t.theme.MutedText.Render(prefix))
	left.WriteString(t.theme.SecondaryText.Render(t.theme.ExpandIndicator(p.IsLeaf(), p.Expanded())))
	left.WriteString(" ")
	fixed := 1 + lipgloss.Width(prefix) + 2

	desc := ""
	if !t.noDesc && width > 40 {
		desc = p.Description()
	}
	descWidth := lipgloss.Width(desc)
	nameWidth := width - fixed - descWidth - 1
	if nameWidth < 5 {
		nameWidth = 5
		desc, descWidth = "", 0
	}
	name := truncateRunesHelper(p.Name(), nameWidth, "…")
	left.WriteString(t.theme.NameStyle(p.IsLeaf()).Render(name))

	padding := width - fixed - lipgloss.Width(name) - descWidth
	if padding < 1 {
		padding = 1
	}
	row := left.String() + strings.Repeat(" ", padding) + t.theme.MutedText.Render(desc)
	return t.styleRow(id, row, width)
}

// gutter is the one-cell column left of each row holding the drop or
// anchor mark.
func (t *TreeView) gutter(id visualizer.ID) string {
	return renderGutter(t.rowView, id)
}

func renderGutter(v *rowView, id visualizer.ID) string {
	above, below, on := v.dropMark(id)
	switch {
	case above:
		return v.theme.DropLine.Render("⎺")
	case below:
		return v.theme.DropLine.Render("⎽")
	case on:
		return v.theme.DropLine.Render("◆")
	case id == v.anchor && v.sel[id]:
		return v.theme.AnchorMark.Render("›")
	case v.sel[id]:
		return v.theme.PrimaryBold.Render("▌")
	default:
		return " "
	}
}

func (v *rowView) styleRow(id visualizer.ID, row string, width int) string {
	style := v.theme.Renderer.NewStyle().Width(width).MaxWidth(width)
	switch {
	case id == v.cursor:
		style = v.theme.Cursor.Width(width).MaxWidth(width)
	case v.sel[id]:
		style = v.theme.Selected.Width(width).MaxWidth(width)
	}
	return style.Render(row)
}

// buildTreePrefix builds the indentation and branch characters for a row.
func (t *TreeView) buildTreePrefix(id visualizer.ID) string {
	path := t.b.Path(id)
	// path[0] is the root, which has no row; top-level rows get no prefix.
	if len(path) <= 2 {
		return ""
	}
	var sb strings.Builder
	for _, anc := range path[2 : len(path)-1] {
		if t.isLastChild(anc) {
			sb.WriteString("    ")
		} else {
			sb.WriteString("│   ")
		}
	}
	if t.isLastChild(id) {
		sb.WriteString("└── ")
	} else {
		sb.WriteString("├── ")
	}
	return sb.String()
}

// isLastChild reports whether id is the last of its siblings.
func (t *TreeView) isLastChild(id visualizer.ID) bool {
	p, ok := t.b.Proxy(id)
	if !ok {
		return true
	}
	siblings := t.b.Children(p.Parent())
	return len(siblings) > 0 && siblings[len(siblings)-1] == id
}
