package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/explorer"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/reorder"
	"github.com/vanderheijden86/nodeview/pkg/uithread"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// Layouts accepted by Options.Layout.
const (
	LayoutSplit = "split"
	LayoutTree  = "tree"
	LayoutList  = "list"
	LayoutTable = "table"
)

// SplitViewThreshold is the narrowest terminal that still gets two panes.
const SplitViewThreshold = 60

// expandAllDepth bounds how deep ExpandAll descends below the cursor.
const expandAllDepth = 3

// Options configures a Model.
type Options struct {
	Context          context.Context
	Layout           string
	Mode             explorer.SelectionMode
	EvictionDelay    time.Duration
	HoverExpandDelay time.Duration
	SplitRatio       float64
	ShowDescriptions bool
	State            *ExpansionState

	// Refresh re-reads a folder from its source; nil disables the key.
	Refresh func(n node.Node) error
	// Clipboard receives copied paths. Defaults to the system clipboard.
	Clipboard func(text string) error
}

func (o Options) withDefaults() Options {
	if o.Context == nil {
		o.Context = context.Background()
	}
	switch o.Layout {
	case LayoutSplit, LayoutTree, LayoutList, LayoutTable:
	default:
		o.Layout = LayoutSplit
	}
	if o.SplitRatio < 0.2 || o.SplitRatio > 0.8 {
		o.SplitRatio = 0.4
	}
	if o.Clipboard == nil {
		o.Clipboard = clipboard.WriteAll
	}
	return o
}

type paneKind int

const (
	paneTree paneKind = iota
	paneList
	paneTable
)

func (k paneKind) String() string {
	switch k {
	case paneTree:
		return "tree"
	case paneList:
		return "list"
	default:
		return "table"
	}
}

// widget is what the model drives on every view.
type widget interface {
	explorer.Widget
	View() string
	SetSize(width, height int)
	Bridge() *visualizer.Bridge
	Close()
	Len() int
	Cursor() visualizer.ID
	CursorNode() node.Node
	SelectedNodes() []node.Node
	MoveCursor(ctx context.Context, delta int, extend bool)
	Home(ctx context.Context, extend bool)
	End(ctx context.Context, extend bool)
	PageUp(ctx context.Context, extend bool)
	PageDown(ctx context.Context, extend bool)
	ToggleCursor(ctx context.Context)
	ClearSelection(ctx context.Context)
	ExpandOrMoveToChild(ctx context.Context)
	CollapseOrJumpToParent(ctx context.Context)
	ExpandRow(ctx context.Context, id visualizer.ID)
	SetDropTarget(t reorder.DropTarget)
	ClearDropTarget()
}

type pane struct {
	kind paneKind
	w    widget
	sync *explorer.Synchronizer
}

// dragRowHeight is the virtual height of a row during a keyboard drag.
// The three steps per row land in the upper quarter, the middle and the
// lower quarter.
const dragRowHeight = 4

var dragOffsets = [3]int{0, 2, 3}

type dragState struct {
	pane    *pane
	session *reorder.Session
	count   int
	row     int
	step    int
}

// Model is the Bubble Tea model of the explorer: a tree pane and a folder
// pane (list or table) bound to one explorer.Manager. The UI loop is
// drained on the program's Update goroutine, so every loop task and every
// widget access happens there.
type Model struct {
	ctx  context.Context
	loop *uithread.Loop
	mgr  *explorer.Manager
	opts Options

	theme Theme
	keys  KeyMap

	tree, list, table *pane
	panes             []*pane
	focus             int
	drag              *dragState

	width, height int
	showHelp      bool
	help          viewport.Model

	statusMsg     string
	statusIsError bool
	quitting      bool
}

// NewModel builds the views and schedules their attachment to mgr on loop.
func NewModel(loop *uithread.Loop, mgr *explorer.Manager, opts Options) Model {
	opts = opts.withDefaults()
	theme := DefaultTheme(lipgloss.DefaultRenderer())

	newBridge := func() *visualizer.Bridge {
		return visualizer.New(loop, visualizer.WithEvictionDelay(opts.EvictionDelay))
	}
	treeOpts := []TreeOption{WithExpansionState(opts.State), WithTitle("Tree")}
	if !opts.ShowDescriptions {
		treeOpts = append(treeOpts, WithoutDescriptions())
	}
	tv := NewTreeView(newBridge(), theme, treeOpts...)
	lv := NewListView(newBridge(), theme)
	lv.SetShowDescriptions(opts.ShowDescriptions)
	tb := NewTableView(newBridge(), theme)

	m := Model{
		ctx:   opts.Context,
		loop:  loop,
		mgr:   mgr,
		opts:  opts,
		theme: theme,
		keys:  DefaultKeyMap(),
		tree: &pane{kind: paneTree, w: tv, sync: explorer.NewSynchronizer(tv.Bridge(), tv,
			explorer.WithSelectionMode(opts.Mode), explorer.Navigate())},
		list: &pane{kind: paneList, w: lv, sync: explorer.NewSynchronizer(lv.Bridge(), lv,
			explorer.ShowExplored(), explorer.WithSelectionMode(opts.Mode))},
		table: &pane{kind: paneTable, w: tb, sync: explorer.NewSynchronizer(tb.Bridge(), tb,
			explorer.ShowExplored(), explorer.WithSelectionMode(opts.Mode))},
		width:  80,
		height: 24,
		help:   viewport.New(60, 20),
	}
	switch opts.Layout {
	case LayoutTree:
		m.panes = []*pane{m.tree}
	case LayoutList:
		m.panes = []*pane{m.list}
	case LayoutTable:
		m.panes = []*pane{m.table}
	default:
		m.panes = []*pane{m.tree, m.list}
	}

	panes := m.panes
	if err := loop.Post(func(ctx context.Context) {
		for _, p := range panes {
			if err := p.sync.Attach(ctx, mgr); err != nil {
				log.Printf("warning: attaching %s view: %v", p.kind, err)
			}
		}
	}); err != nil {
		log.Printf("warning: ui loop unavailable: %v", err)
	}
	m.resize()
	return m
}

// Init starts draining the UI loop.
func (m Model) Init() tea.Cmd {
	return uithread.WaitForTaskCmd(m.loop)
}

// Update handles loop wake-ups, window changes and keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, ok := uithread.HandleMsg(m.ctx, m.loop, msg); ok {
		return m, cmd
	}

	switch msg := msg.(type) {
	case uithread.LoopStoppedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			return m.updateHelp(msg)
		}
		mm := &m
		mm.run(func(ctx context.Context) { mm.handleKey(ctx, msg) })
		if m.quitting {
			m.saveState()
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// run executes fn as a loop task on the calling goroutine, which must be
// the program's Update goroutine.
func (m *Model) run(fn uithread.Task) {
	if err := m.loop.Post(fn); err != nil {
		debug.Log("ui: dropping input, %v", err)
		return
	}
	m.loop.Drain(m.ctx)
}

func (m *Model) setStatus(format string, args ...any) {
	m.statusMsg = fmt.Sprintf(format, args...)
	m.statusIsError = false
}

func (m *Model) setError(format string, args ...any) {
	m.statusMsg = fmt.Sprintf(format, args...)
	m.statusIsError = true
}

func (m *Model) focused() *pane {
	if m.focus < 0 || m.focus >= len(m.panes) {
		m.focus = 0
	}
	return m.panes[m.focus]
}

func (m *Model) handleKey(ctx context.Context, msg tea.KeyMsg) {
	if m.drag != nil {
		if m.handleDragKey(ctx, msg) {
			return
		}
	}
	m.statusMsg = ""
	p := m.focused()
	w := p.w

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
	case key.Matches(msg, m.keys.Help):
		m.openHelp()
	case key.Matches(msg, m.keys.Tab):
		m.focus = (m.focus + 1) % len(m.panes)
	case key.Matches(msg, m.keys.SwapView):
		m.swapFolderView(ctx)

	case key.Matches(msg, m.keys.ExtendUp):
		w.MoveCursor(ctx, -1, true)
	case key.Matches(msg, m.keys.ExtendDown):
		w.MoveCursor(ctx, 1, true)
	case key.Matches(msg, m.keys.Up):
		w.MoveCursor(ctx, -1, false)
	case key.Matches(msg, m.keys.Down):
		w.MoveCursor(ctx, 1, false)
	case key.Matches(msg, m.keys.PageUp):
		w.PageUp(ctx, false)
	case key.Matches(msg, m.keys.PageDown):
		w.PageDown(ctx, false)
	case key.Matches(msg, m.keys.Home):
		w.Home(ctx, false)
	case key.Matches(msg, m.keys.End):
		w.End(ctx, false)
	case key.Matches(msg, m.keys.Toggle):
		w.ToggleCursor(ctx)
	case key.Matches(msg, m.keys.Cancel):
		w.ClearSelection(ctx)

	case key.Matches(msg, m.keys.Expand):
		if p.kind == paneTree {
			w.ExpandOrMoveToChild(ctx)
		} else {
			m.open(ctx, p)
		}
	case key.Matches(msg, m.keys.Collapse):
		if p.kind == paneTree {
			w.CollapseOrJumpToParent(ctx)
		} else {
			m.back(ctx)
		}
	case key.Matches(msg, m.keys.ExpandAll):
		if tv, ok := w.(*TreeView); ok {
			tv.ExpandAll(ctx, expandAllDepth)
		}
	case key.Matches(msg, m.keys.CollapseAll):
		if tv, ok := w.(*TreeView); ok {
			tv.CollapseAll(ctx)
		}
	case key.Matches(msg, m.keys.Open):
		m.open(ctx, p)
	case key.Matches(msg, m.keys.Back):
		m.back(ctx)

	case key.Matches(msg, m.keys.MoveUp):
		m.move(p, -1)
	case key.Matches(msg, m.keys.MoveDown):
		m.move(p, 1)
	case key.Matches(msg, m.keys.Drag):
		m.startDrag(p)

	case key.Matches(msg, m.keys.Copy):
		m.copyPaths(p)
	case key.Matches(msg, m.keys.Refresh):
		m.refresh()
	}
}

// open makes the folder under the cursor the explored context.
func (m *Model) open(ctx context.Context, p *pane) {
	n := p.w.CursorNode()
	if n == nil || n.IsLeaf() {
		m.setError("Not a folder")
		return
	}
	if err := p.sync.Explore(ctx, n); err != nil {
		m.setError("Cannot open %s: %v", n.DisplayName(), err)
		return
	}
	if p.kind == paneTree && len(m.panes) > 1 {
		m.focus = 1
	}
}

// back explores the parent of the explored context, selecting the folder
// that was left.
func (m *Model) back(ctx context.Context) {
	cur := m.mgr.ExploredContext()
	if cur == nil || cur == m.mgr.RootContext() || cur.Parent() == nil {
		m.setStatus("Already at the top")
		return
	}
	if err := m.mgr.SetExploredContextAndSelection(ctx, cur.Parent(), []node.Node{cur}); err != nil {
		m.setError("Cannot leave %s: %v", cur.DisplayName(), err)
	}
}

// swapFolderView replaces the list pane with the table pane or back. The
// hidden view is detached and keeps a snapshot of its selection.
func (m *Model) swapFolderView(ctx context.Context) {
	slot := -1
	for i, p := range m.panes {
		if p.kind != paneTree {
			slot = i
		}
	}
	if slot < 0 {
		m.setStatus("No folder pane in tree layout")
		return
	}
	old := m.panes[slot]
	next := m.table
	if old.kind == paneTable {
		next = m.list
	}
	old.sync.Detach()
	if err := next.sync.Attach(ctx, m.mgr); err != nil {
		m.setError("Cannot show %s view: %v", next.kind, err)
		_ = old.sync.Attach(ctx, m.mgr)
		return
	}
	m.panes[slot] = next
	m.resize()
	m.setStatus("Showing %s view", next.kind)
}

func (m *Model) selectionOrCursor(p *pane) []node.Node {
	nodes := p.w.SelectedNodes()
	if len(nodes) == 0 {
		if n := p.w.CursorNode(); n != nil {
			nodes = []node.Node{n}
		}
	}
	return nodes
}

// move shifts the selected siblings one position.
func (m *Model) move(p *pane, delta int) {
	nodes := m.selectionOrCursor(p)
	folder := commonParent(nodes)
	if folder == nil {
		m.setError("Selection spans several folders")
		return
	}
	m.reportReorder(reorder.Move(folder, nodes, delta), len(nodes))
}

func (m *Model) reportReorder(res reorder.Result, n int) {
	switch res {
	case reorder.Applied:
		m.setStatus("Moved %d item(s)", n)
	case reorder.Unchanged:
		m.setStatus("Already in place")
	case reorder.Rejected:
		m.setError("Cannot reorder here")
	case reorder.Failed:
		m.setError("Reorder failed")
	}
}

// startDrag begins a keyboard drag of the selection within its folder.
func (m *Model) startDrag(p *pane) {
	nodes := m.selectionOrCursor(p)
	folder := commonParent(nodes)
	if folder == nil {
		m.setError("Selection spans several folders")
		return
	}
	idx, ok := node.ReorderableOf(folder)
	if !ok {
		m.setError("%s cannot be reordered", folder.DisplayName())
		return
	}
	first := idx.Count()
	for _, n := range nodes {
		if i := idx.IndexOf(n); i >= 0 && i < first {
			first = i
		}
	}
	if first >= idx.Count() {
		return
	}
	s := reorder.NewSession(m.loop, folder, nodes,
		reorder.WithHoverExpand(m.opts.HoverExpandDelay, hoverExpand(p)))
	m.drag = &dragState{pane: p, session: s, count: idx.Count(), row: first}
	m.updateDrag()
}

// hoverExpand expands a folder row the drag rested on. It captures only
// the pane because the model value changes between updates.
func hoverExpand(p *pane) reorder.ExpandFunc {
	return func(ctx context.Context, folder node.Node) {
		pr, err := p.w.Bridge().ProxyFor(ctx, folder)
		if err != nil {
			debug.Log("ui: hover target gone: %v", err)
			return
		}
		p.w.ExpandRow(ctx, pr.ID())
	}
}

func (m *Model) updateDrag() {
	d := m.drag
	t := d.session.Over(d.row, dragOffsets[d.step], dragRowHeight)
	d.pane.w.SetDropTarget(t)
	m.setStatus("Drag %d item(s): %s", len(d.session.Dragged()), t)
}

func (m *Model) endDrag() {
	if m.drag == nil {
		return
	}
	m.drag.pane.w.ClearDropTarget()
	m.drag = nil
}

// handleDragKey handles keys while dragging. It reports false when the
// key should also go through normal handling.
func (m *Model) handleDragKey(_ context.Context, msg tea.KeyMsg) bool {
	d := m.drag
	switch {
	case key.Matches(msg, m.keys.Up):
		if d.step > 0 {
			d.step--
		} else if d.row > 0 {
			d.row--
			d.step = len(dragOffsets) - 1
		}
		m.updateDrag()
	case key.Matches(msg, m.keys.Down):
		if d.step < len(dragOffsets)-1 {
			d.step++
		} else if d.row < d.count-1 {
			d.row++
			d.step = 0
		}
		m.updateDrag()
	case key.Matches(msg, m.keys.Open):
		n := len(d.session.Dragged())
		res := d.session.Drop()
		m.endDrag()
		m.reportReorder(res, n)
	case key.Matches(msg, m.keys.Cancel):
		d.session.Exit()
		d.session.Hidden()
		m.endDrag()
		m.setStatus("Drag cancelled")
	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.SwapView), key.Matches(msg, m.keys.Quit):
		d.session.Hidden()
		m.endDrag()
		return false
	}
	return true
}

func (m *Model) copyPaths(p *pane) {
	nodes := m.selectionOrCursor(p)
	if len(nodes) == 0 {
		m.setError("Nothing selected")
		return
	}
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		if pn, ok := n.(interface{ Path() string }); ok {
			paths[i] = pn.Path()
		} else {
			paths[i] = n.DisplayName()
		}
	}
	if err := m.opts.Clipboard(strings.Join(paths, "\n")); err != nil {
		m.setError("Clipboard error: %v", err)
		return
	}
	m.setStatus("Copied %d path(s) to clipboard", len(paths))
}

func (m *Model) refresh() {
	if m.opts.Refresh == nil {
		return
	}
	n := m.mgr.ExploredContext()
	if n == nil {
		n = m.mgr.RootContext()
	}
	if n == nil {
		return
	}
	if err := m.opts.Refresh(n); err != nil {
		m.setError("Refresh failed: %v", err)
		return
	}
	m.setStatus("Refreshed %s", n.DisplayName())
}

func (m *Model) saveState() {
	if err := m.opts.State.Save(); err != nil {
		debug.Log("ui: expansion state not saved: %v", err)
	}
}

// Shutdown detaches every view and releases the bridges. It drains the
// loop on the calling goroutine, so call it after the program has exited.
func (m Model) Shutdown() {
	m.saveState()
	all := []*pane{m.tree, m.list, m.table}
	m.run(func(context.Context) {
		for _, p := range all {
			p.sync.Detach()
			p.w.Close()
			p.w.Bridge().Close()
		}
	})
}

// ── Layout ──

func (m *Model) bodyHeight() int {
	h := m.height - 2 // header and footer
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) split() bool {
	return len(m.panes) > 1 && m.width >= SplitViewThreshold
}

// resize hands each visible pane its inner size. Panels draw a border.
func (m *Model) resize() {
	m.help.Width = m.width - 4
	m.help.Height = m.bodyHeight()
	h := m.bodyHeight() - 2
	if !m.split() {
		for _, p := range m.panes {
			p.w.SetSize(m.width-2, h)
		}
		return
	}
	left := int(float64(m.width) * m.opts.SplitRatio)
	m.panes[0].w.SetSize(left-2, h)
	m.panes[1].w.SetSize(m.width-left-2, h)
}

// ── Rendering ──

// View renders header, panes and footer.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.help.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.renderBody(), m.renderFooter())
}

func (m *Model) renderHeader() string {
	title := "nv"
	if root := m.mgr.RootContext(); root != nil {
		title += "  " + root.DisplayName()
		if ex := m.mgr.ExploredContext(); ex != nil && ex != root {
			var names []string
			if path := node.PathFromRoot(root, ex); len(path) > 1 {
				for _, n := range path[1:] {
					names = append(names, n.DisplayName())
				}
			}
			if len(names) > 0 {
				title += " › " + strings.Join(names, " › ")
			}
		}
	}
	if m.width > 2 {
		title = truncate(title, m.width-2)
	}
	return m.theme.Header.Width(m.width).MaxWidth(m.width).Render(title)
}

func (m *Model) renderBody() string {
	h := m.bodyHeight()
	if !m.split() {
		p := m.focused()
		return RenderPanel(p.w.View(), m.width, h, true)
	}
	left := int(float64(m.width) * m.opts.SplitRatio)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		RenderPanel(m.panes[0].w.View(), left, h, m.focus == 0),
		RenderPanel(m.panes[1].w.View(), m.width-left, h, m.focus == 1),
	)
}

func (m *Model) renderFooter() string {
	if m.statusMsg != "" {
		prefix := "✓ "
		if m.statusIsError {
			prefix = "✗ "
		}
		return RenderStatus(prefix+m.statusMsg, m.statusIsError, m.width)
	}
	if m.drag != nil {
		return RenderKeyHints("↑/↓", "position", "enter", "drop", "esc", "cancel")
	}
	return RenderKeyHints("space", "select", "enter", "open", "K/J", "move", "m", "drag",
		"y", "copy", "tab", "pane", "?", "help", "q", "quit")
}

func (m *Model) openHelp() {
	var sb strings.Builder
	sb.WriteString(m.theme.PrimaryBold.Render("Keys"))
	sb.WriteString("\n\n")
	for _, b := range m.keys.bindings() {
		h := b.Help()
		sb.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
	}
	sb.WriteString("\n")
	sb.WriteString(m.theme.MutedText.Render(fmt.Sprintf("  selection mode: %s", m.opts.Mode)))
	m.help.SetContent(sb.String())
	m.help.GotoTop()
	m.showHelp = true
}

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.showHelp = false
		return m, nil
	}
	var cmd tea.Cmd
	m.help, cmd = m.help.Update(msg)
	return m, cmd
}

// ── Accessors used by cmd/nv and tests ──

// Status returns the footer message and whether it reports an error.
func (m Model) Status() (string, bool) { return m.statusMsg, m.statusIsError }

// FocusedView returns the name of the focused pane.
func (m Model) FocusedView() string { return m.focused().kind.String() }

// Dragging reports whether a keyboard drag is in progress.
func (m Model) Dragging() bool { return m.drag != nil }

func commonParent(nodes []node.Node) node.Node {
	if len(nodes) == 0 {
		return nil
	}
	parent := nodes[0].Parent()
	for _, n := range nodes[1:] {
		if n.Parent() != parent {
			return nil
		}
	}
	return parent
}
