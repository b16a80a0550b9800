package ui

import (
	"context"
	"sort"

	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/reorder"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// rowView is the part of every view that implements explorer.Widget: a
// flattened row list over a visualizer.Bridge with cursor, selection and
// viewport state. Tree views list every visible descendant of the root in
// pre-order; flat views list the root's children only. The root itself
// never has a row.
//
// rowView is confined to the UI loop like the bridge it reads.
type rowView struct {
	b     *visualizer.Bridge
	theme Theme
	flat  bool

	root  visualizer.ID
	rows  []visualizer.ID
	index map[visualizer.ID]int
	dirty bool

	// onRebuild runs for each row while the row list is rebuilt. Tree views
	// use it to apply remembered expansion state.
	onRebuild func(id visualizer.ID)

	cursor   visualizer.ID
	offset   int
	width    int
	height   int
	reserved int // lines taken by headers

	sel    map[visualizer.ID]bool
	anchor visualizer.ID

	nextSub  int
	selSubs  map[int]func(context.Context)
	expSubs  map[int]func(context.Context, visualizer.ID, bool)
	unlisten func()

	drop    reorder.DropTarget
	hasDrop bool
}

func newRowView(b *visualizer.Bridge, theme Theme, flat bool) *rowView {
	v := &rowView{
		b:       b,
		theme:   theme,
		flat:    flat,
		root:    visualizer.NoID,
		cursor:  visualizer.NoID,
		anchor:  visualizer.NoID,
		index:   make(map[visualizer.ID]int),
		sel:     make(map[visualizer.ID]bool),
		selSubs: make(map[int]func(context.Context)),
		expSubs: make(map[int]func(context.Context, visualizer.ID, bool)),
		height:  20,
		width:   80,
	}
	v.unlisten = b.Listen(func(visualizer.StructureEvent) { v.dirty = true })
	return v
}

// Close stops listening to the bridge.
func (v *rowView) Close() {
	if v.unlisten != nil {
		v.unlisten()
		v.unlisten = nil
	}
}

// Bridge returns the proxy bridge the view reads.
func (v *rowView) Bridge() *visualizer.Bridge { return v.b }

// SetSize sets the viewport dimensions in cells.
func (v *rowView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.ensureCursorVisible()
}

// SetRoot implements explorer.Widget.
func (v *rowView) SetRoot(root visualizer.ID) {
	v.root = root
	v.sel = make(map[visualizer.ID]bool)
	v.anchor = visualizer.NoID
	v.cursor = visualizer.NoID
	v.offset = 0
	v.hasDrop = false
	v.dirty = true
}

// Root returns the proxy shown as root, or NoID.
func (v *rowView) Root() visualizer.ID { return v.root }

// ensure rebuilds the row list after structure changes.
func (v *rowView) ensure() {
	if !v.dirty && v.index != nil {
		return
	}
	v.dirty = false
	v.rows = v.rows[:0]
	if _, ok := v.b.Proxy(v.root); ok {
		if v.flat {
			v.rows = append(v.rows, v.b.Children(v.root)...)
		} else {
			v.appendVisible(v.root, nil)
		}
	}
	// appendVisible may expand rows through onRebuild, which marks the view
	// dirty again; the list built here already reflects those expansions.
	v.dirty = false

	v.index = make(map[visualizer.ID]int, len(v.rows))
	for i, id := range v.rows {
		v.index[id] = i
	}
	for id := range v.sel {
		if _, ok := v.b.Proxy(id); !ok {
			delete(v.sel, id)
		}
	}
	if _, ok := v.b.Proxy(v.anchor); !ok {
		v.anchor = visualizer.NoID
	}
	if _, ok := v.index[v.cursor]; !ok {
		v.cursor = v.fallbackCursor()
	}
	v.ensureCursorVisible()
}

// appendVisible adds the children of id, and the children of expanded
// children, in pre-order. extra lists ids to treat as expanded.
func (v *rowView) appendVisible(id visualizer.ID, extra map[visualizer.ID]bool) {
	for _, c := range v.b.Children(id) {
		v.rows = append(v.rows, c)
		if extra == nil && v.onRebuild != nil {
			v.onRebuild(c)
		}
		if v.b.IsExpanded(c) || extra[c] {
			v.appendVisible(c, extra)
		}
	}
}

// fallbackCursor picks a row for the cursor after its row disappeared.
func (v *rowView) fallbackCursor() visualizer.ID {
	if len(v.rows) == 0 {
		return visualizer.NoID
	}
	if p, ok := v.b.Proxy(v.cursor); ok {
		// A collapsed ancestor took the row: land on it.
		for cur := p.Parent(); cur != visualizer.NoID; {
			if _, ok := v.index[cur]; ok {
				return cur
			}
			pp, ok := v.b.Proxy(cur)
			if !ok {
				break
			}
			cur = pp.Parent()
		}
	}
	for _, id := range v.orderedSelection() {
		if _, ok := v.index[id]; ok {
			return id
		}
	}
	return v.rows[0]
}

// Rows returns the ids of the current rows.
func (v *rowView) Rows() []visualizer.ID {
	v.ensure()
	return append([]visualizer.ID(nil), v.rows...)
}

// Len returns the number of rows.
func (v *rowView) Len() int {
	v.ensure()
	return len(v.rows)
}

// Selection implements explorer.Widget.
func (v *rowView) Selection() []visualizer.ID {
	v.ensure()
	return v.orderedSelection()
}

func (v *rowView) orderedSelection() []visualizer.ID {
	out := make([]visualizer.ID, 0, len(v.sel))
	for id := range v.sel {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := v.index[out[i]]
		rj, jok := v.index[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// IsSelected reports whether id is selected.
func (v *rowView) IsSelected(id visualizer.ID) bool { return v.sel[id] }

// Anchor implements explorer.Widget.
func (v *rowView) Anchor() visualizer.ID { return v.anchor }

// SetSelection implements explorer.Widget. The cursor follows the anchor.
func (v *rowView) SetSelection(ids []visualizer.ID, anchor visualizer.ID) {
	v.sel = make(map[visualizer.ID]bool, len(ids))
	for _, id := range ids {
		if _, ok := v.b.Proxy(id); ok {
			v.sel[id] = true
		}
	}
	v.anchor = anchor
	v.ensure()
	switch {
	case v.hasRow(anchor):
		v.cursor = anchor
	case len(ids) > 0 && v.hasRow(ids[0]):
		v.cursor = ids[0]
	}
	v.ensureCursorVisible()
}

func (v *rowView) hasRow(id visualizer.ID) bool {
	_, ok := v.index[id]
	return ok
}

// Reveal implements explorer.Widget.
func (v *rowView) Reveal(id visualizer.ID) {
	if v.flat {
		return
	}
	path := v.b.Path(id)
	if len(path) < 2 {
		return
	}
	for _, anc := range path[1 : len(path)-1] {
		if !v.b.IsExpanded(anc) {
			_ = v.b.Expand(anc)
			v.dirty = true
		}
	}
}

// Row implements explorer.Widget.
func (v *rowView) Row(id visualizer.ID) int {
	v.ensure()
	if r, ok := v.index[id]; ok {
		return r
	}
	return -1
}

// DisplayPositions implements explorer.Widget.
func (v *rowView) DisplayPositions(ids []visualizer.ID) []int {
	v.ensure()
	out := make([]int, len(ids))
	if v.flat {
		for i, id := range ids {
			out[i] = v.Row(id)
		}
		return out
	}

	extra := make(map[visualizer.ID]bool)
	for _, id := range ids {
		path := v.b.Path(id)
		if len(path) > 1 {
			for _, anc := range path[:len(path)-1] {
				extra[anc] = true
			}
		}
	}
	saved := v.rows
	v.rows = nil
	if _, ok := v.b.Proxy(v.root); ok {
		v.appendVisible(v.root, extra)
	}
	hypothetical := v.rows
	v.rows = saved

	pos := make(map[visualizer.ID]int, len(hypothetical))
	for i, id := range hypothetical {
		pos[id] = i
	}
	for i, id := range ids {
		if p, ok := pos[id]; ok {
			out[i] = p
		} else {
			out[i] = -1
		}
	}
	return out
}

// pageSize returns how many rows fit in the viewport.
func (v *rowView) pageSize() int {
	n := v.height - v.reserved
	if n <= 0 {
		n = 1
	}
	// Reserve a line for the position indicator when scrolling is needed.
	if len(v.rows) > n && n > 1 {
		n--
	}
	return n
}

// visibleRange returns the [start, end) rows inside the viewport.
func (v *rowView) visibleRange() (start, end int) {
	if len(v.rows) == 0 {
		return 0, 0
	}
	page := v.pageSize()
	start = v.offset
	if start < 0 {
		start = 0
	}
	end = start + page
	if end > len(v.rows) {
		end = len(v.rows)
		start = end - page
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// RowVisible implements explorer.Widget.
func (v *rowView) RowVisible(id visualizer.ID) bool {
	r := v.Row(id)
	if r < 0 {
		return false
	}
	start, end := v.visibleRange()
	return r >= start && r < end
}

// ScrollTo implements explorer.Widget. The row becomes the top row when
// possible.
func (v *rowView) ScrollTo(id visualizer.ID) {
	r := v.Row(id)
	if r < 0 {
		return
	}
	v.offset = r
	v.clampOffset()
}

func (v *rowView) clampOffset() {
	maxOffset := len(v.rows) - v.pageSize()
	if maxOffset < 0 {
		maxOffset = 0
	}
	if v.offset > maxOffset {
		v.offset = maxOffset
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

// ensureCursorVisible scrolls just enough to keep the cursor row inside
// the viewport.
func (v *rowView) ensureCursorVisible() {
	r, ok := v.index[v.cursor]
	if !ok {
		v.clampOffset()
		return
	}
	page := v.pageSize()
	if r < v.offset {
		v.offset = r
	}
	if r >= v.offset+page {
		v.offset = r - page + 1
	}
	v.clampOffset()
}

// SetExpanded implements explorer.Widget.
func (v *rowView) SetExpanded(id visualizer.ID, expanded bool) {
	if expanded {
		_ = v.b.Expand(id)
	} else {
		_ = v.b.Collapse(id)
	}
	v.dirty = true
}

// Expanded implements explorer.Widget.
func (v *rowView) Expanded(id visualizer.ID) bool { return v.b.IsExpanded(id) }

// OnSelectionChanged implements explorer.Widget.
func (v *rowView) OnSelectionChanged(fn func(context.Context)) func() {
	v.nextSub++
	id := v.nextSub
	v.selSubs[id] = fn
	return func() { delete(v.selSubs, id) }
}

// OnExpansionChanged implements explorer.Widget.
func (v *rowView) OnExpansionChanged(fn func(context.Context, visualizer.ID, bool)) func() {
	v.nextSub++
	id := v.nextSub
	v.expSubs[id] = fn
	return func() { delete(v.expSubs, id) }
}

func (v *rowView) fireSelection(ctx context.Context) {
	for _, k := range sortedKeys(v.selSubs) {
		if fn, ok := v.selSubs[k]; ok {
			fn(ctx)
		}
	}
}

func (v *rowView) fireExpansion(ctx context.Context, id visualizer.ID, expanded bool) {
	for _, k := range sortedKeys(v.expSubs) {
		if fn, ok := v.expSubs[k]; ok {
			fn(ctx, id, expanded)
		}
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// ── User actions ──
//
// The methods below are driven by key presses. Unlike the explorer.Widget
// methods they notify listeners, so the explorer Manager hears about them.

// Cursor returns the proxy under the cursor, or NoID.
func (v *rowView) Cursor() visualizer.ID {
	v.ensure()
	return v.cursor
}

// CursorRow returns the cursor's row, or -1.
func (v *rowView) CursorRow() int { return v.Row(v.Cursor()) }

// MoveCursor moves the cursor by delta rows. With extend the selection
// grows from the anchor to the new cursor row; otherwise the cursor row
// alone becomes the selection.
func (v *rowView) MoveCursor(ctx context.Context, delta int, extend bool) {
	v.ensure()
	if len(v.rows) == 0 {
		return
	}
	from := v.CursorRow()
	to := from + delta
	if from < 0 {
		to = 0
	}
	if to < 0 {
		to = 0
	}
	if to >= len(v.rows) {
		to = len(v.rows) - 1
	}
	v.moveTo(ctx, to, extend)
}

// Home moves the cursor to the first row.
func (v *rowView) Home(ctx context.Context, extend bool) {
	if v.Len() > 0 {
		v.moveTo(ctx, 0, extend)
	}
}

// End moves the cursor to the last row.
func (v *rowView) End(ctx context.Context, extend bool) {
	if n := v.Len(); n > 0 {
		v.moveTo(ctx, n-1, extend)
	}
}

// PageDown moves the cursor down by a viewport.
func (v *rowView) PageDown(ctx context.Context, extend bool) {
	v.MoveCursor(ctx, v.pageSize(), extend)
}

// PageUp moves the cursor up by a viewport.
func (v *rowView) PageUp(ctx context.Context, extend bool) {
	v.MoveCursor(ctx, -v.pageSize(), extend)
}

func (v *rowView) moveTo(ctx context.Context, row int, extend bool) {
	prev := v.cursor
	v.cursor = v.rows[row]
	v.ensureCursorVisible()

	if extend {
		if v.anchor == visualizer.NoID || !v.hasRow(v.anchor) {
			v.anchor = prev
			if !v.hasRow(prev) {
				v.anchor = v.cursor
			}
		}
		lo, hi := v.index[v.anchor], row
		if lo > hi {
			lo, hi = hi, lo
		}
		v.sel = make(map[visualizer.ID]bool, hi-lo+1)
		for _, id := range v.rows[lo : hi+1] {
			v.sel[id] = true
		}
	} else {
		v.sel = map[visualizer.ID]bool{v.cursor: true}
		v.anchor = v.cursor
	}
	v.fireSelection(ctx)
}

// ToggleCursor adds the cursor row to the selection or removes it.
func (v *rowView) ToggleCursor(ctx context.Context) {
	id := v.Cursor()
	if id == visualizer.NoID {
		return
	}
	if v.sel[id] {
		delete(v.sel, id)
	} else {
		v.sel[id] = true
	}
	v.anchor = id
	v.fireSelection(ctx)
}

// ClearSelection empties the selection.
func (v *rowView) ClearSelection(ctx context.Context) {
	if len(v.sel) == 0 {
		return
	}
	v.sel = make(map[visualizer.ID]bool)
	v.anchor = visualizer.NoID
	v.fireSelection(ctx)
}

// ExpandOrMoveToChild expands a collapsed cursor row, or steps into the
// first child of an expanded one.
func (v *rowView) ExpandOrMoveToChild(ctx context.Context) {
	id := v.Cursor()
	p, ok := v.b.Proxy(id)
	if !ok || p.IsLeaf() || v.flat {
		return
	}
	if !p.Expanded() {
		v.SetExpanded(id, true)
		v.fireExpansion(ctx, id, true)
		return
	}
	v.ensure()
	if kids := v.b.Children(id); len(kids) > 0 && v.hasRow(kids[0]) {
		v.moveTo(ctx, v.index[kids[0]], false)
	}
}

// ExpandRow expands id on the user's behalf.
func (v *rowView) ExpandRow(ctx context.Context, id visualizer.ID) {
	p, ok := v.b.Proxy(id)
	if !ok || p.IsLeaf() || p.Expanded() || v.flat {
		return
	}
	v.SetExpanded(id, true)
	v.fireExpansion(ctx, id, true)
}

// CollapseOrJumpToParent collapses an expanded cursor row, or moves the
// cursor to the parent row.
func (v *rowView) CollapseOrJumpToParent(ctx context.Context) {
	id := v.Cursor()
	p, ok := v.b.Proxy(id)
	if !ok || v.flat {
		return
	}
	if !p.IsLeaf() && p.Expanded() {
		v.SetExpanded(id, false)
		v.fireExpansion(ctx, id, false)
		v.ensure()
		return
	}
	if v.hasRow(p.Parent()) {
		v.moveTo(ctx, v.index[p.Parent()], false)
	}
}

// CursorNode returns the node under the cursor, or nil.
func (v *rowView) CursorNode() node.Node {
	if p, ok := v.b.Proxy(v.Cursor()); ok {
		return p.Node()
	}
	return nil
}

// SelectedNodes returns the selected nodes in row order.
func (v *rowView) SelectedNodes() []node.Node {
	ids := v.Selection()
	out := make([]node.Node, 0, len(ids))
	for _, id := range ids {
		if p, ok := v.b.Proxy(id); ok {
			out = append(out, p.Node())
		}
	}
	return out
}

// SetDropTarget highlights where a drag would land. An invalid target
// clears the highlight.
func (v *rowView) SetDropTarget(t reorder.DropTarget) {
	v.drop = t
	v.hasDrop = t.Zone != reorder.ZoneNone
}

// ClearDropTarget removes the drop highlight.
func (v *rowView) ClearDropTarget() { v.hasDrop = false }

// dropMark reports where the drop highlight touches id's row.
func (v *rowView) dropMark(id visualizer.ID) (above, below, on bool) {
	if !v.hasDrop {
		return false, false, false
	}
	p, ok := v.b.Proxy(id)
	if !ok {
		return false, false, false
	}
	parent, ok := v.b.Proxy(p.Parent())
	if !ok || parent.Node() != v.drop.Folder {
		return false, false, false
	}
	idx := v.b.ChildIndex(id)
	if idx != v.drop.Row {
		return false, false, false
	}
	switch v.drop.Zone {
	case reorder.ZoneAbove:
		return true, false, false
	case reorder.ZoneBelow:
		return false, true, false
	case reorder.ZoneOn:
		return false, false, true
	}
	return false, false, false
}
