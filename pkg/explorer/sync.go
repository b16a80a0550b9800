package explorer

import (
	"context"
	"errors"
	"sort"

	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// SyncState is the attachment state of a Synchronizer.
type SyncState int

const (
	Detached SyncState = iota
	Attached
)

func (s SyncState) String() string {
	if s == Attached {
		return "attached"
	}
	return "detached"
}

// Errors returned by Synchronizer.
var (
	ErrAttached = errors.New("synchronizer already attached")
	ErrDetached = errors.New("synchronizer not attached")
)

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSelectionMode sets the view's selection mode.
func WithSelectionMode(m SelectionMode) SyncOption {
	return func(s *Synchronizer) { s.mode = m }
}

// WithPolicy sets the view's acceptance policy.
func WithPolicy(p Policy) SyncOption {
	return func(s *Synchronizer) { s.policy = p }
}

// ShowExplored makes the view display the explored context instead of the
// root context, and accept only selections inside it.
func ShowExplored() SyncOption {
	return func(s *Synchronizer) {
		s.showExplored = true
		s.policy = ExploredChildren
	}
}

// Navigate makes user selections also move the explored context to the
// selected nodes' common parent.
func Navigate() SyncOption {
	return func(s *Synchronizer) { s.navigate = true }
}

// Synchronizer keeps one Widget consistent with a Manager in both
// directions.
type Synchronizer struct {
	bridge *visualizer.Bridge
	widget Widget

	mode         SelectionMode
	policy       Policy
	showExplored bool
	navigate     bool

	mgr      *Manager
	state    SyncState
	cancels  []func()
	snapshot *Snapshot

	// applying is set while Manager state is pushed into the widget, so the
	// widget's own selection events are ignored. issuing is set while this
	// view's setter call is in flight, so the resulting Manager events are
	// not replayed into the widget that caused them.
	applying bool
	issuing  bool
}

// NewSynchronizer binds widget, whose proxies come from b. It starts
// detached.
func NewSynchronizer(b *visualizer.Bridge, widget Widget, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		bridge: b,
		widget: widget,
		mode:   Discontiguous,
		policy: UnderRoot,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns whether the synchronizer is attached.
func (s *Synchronizer) State() SyncState { return s.state }

// Manager returns the attached manager, or nil.
func (s *Synchronizer) Manager() *Manager { return s.mgr }

// Mode returns the selection mode.
func (s *Synchronizer) Mode() SelectionMode { return s.mode }

// SetMode changes the selection mode. The current selection is not
// re-validated.
func (s *Synchronizer) SetMode(m SelectionMode) { s.mode = m }

// Bridge returns the proxy bridge the widget reads from.
func (s *Synchronizer) Bridge() *visualizer.Bridge { return s.bridge }

// Widget returns the bound widget.
func (s *Synchronizer) Widget() Widget { return s.widget }

// Attach subscribes to m and the widget and pushes m's state into the
// widget. A snapshot taken by Detach on this same widget is restored
// instead when m's selection still matches it.
func (s *Synchronizer) Attach(ctx context.Context, m *Manager) error {
	defer debug.LogEnterExit("explorer: attach")()
	if s.state == Attached {
		return ErrAttached
	}
	s.mgr = m
	s.state = Attached
	s.cancels = []func(){
		m.OnChange(s.managerChanged),
		m.OnVeto(s.vetoable),
		s.widget.OnSelectionChanged(s.widgetSelectionChanged),
		s.widget.OnExpansionChanged(s.widgetExpansionChanged),
	}
	s.pushRoot()

	snap := s.snapshot
	s.snapshot = nil
	if snap != nil && snap.Widget == s.widget && sameNodeSet(snap.Nodes, m.SelectedNodes()) {
		s.restore(ctx, snap)
		return nil
	}
	s.pushSelection(ctx)
	return nil
}

// Detach unsubscribes and returns a snapshot of the widget's selection,
// which is also kept for the next Attach.
func (s *Synchronizer) Detach() *Snapshot {
	if s.state != Attached {
		return nil
	}
	snap := s.Snapshot()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.mgr = nil
	s.state = Detached
	s.snapshot = snap
	return snap
}

// Snapshot captures the widget's current selection.
func (s *Synchronizer) Snapshot() *Snapshot {
	snap := &Snapshot{Widget: s.widget, Mode: s.mode}
	ids := s.widget.Selection()
	rows := make([]int, 0, len(ids))
	for _, id := range ids {
		p, ok := s.bridge.Proxy(id)
		if !ok {
			continue
		}
		snap.Nodes = append(snap.Nodes, p.Node())
		rows = append(rows, s.widget.Row(id))
	}
	if p, ok := s.bridge.Proxy(s.widget.Anchor()); ok {
		snap.Anchor = p.Node()
	}
	sort.Ints(rows)
	snap.Intervals = intervals(rows)
	return snap
}

// Explore makes n the explored context.
func (s *Synchronizer) Explore(ctx context.Context, n node.Node) error {
	if s.state != Attached {
		return ErrDetached
	}
	return s.mgr.SetExploredContext(ctx, n)
}

func (s *Synchronizer) viewRoot(st State) node.Node {
	if s.showExplored {
		return st.Explored
	}
	return st.Root
}

// pushRoot rebuilds the bridge around the view root and hands it to the
// widget. The old root's proxies are dropped by the bridge.
func (s *Synchronizer) pushRoot() {
	s.applying = true
	defer func() { s.applying = false }()
	id := s.bridge.SetRoot(s.viewRoot(s.mgr.State()))
	s.widget.SetRoot(id)
}

// pushSelection makes the widget show the Manager's selection.
func (s *Synchronizer) pushSelection(ctx context.Context) {
	defer metrics.Timer(metrics.SelectionSync)()

	ids := s.proxies(ctx, s.mgr.SelectedNodes())

	s.applying = true
	defer func() { s.applying = false }()

	for _, id := range ids {
		s.widget.Reveal(id)
	}
	anchor := visualizer.NoID
	if cur := s.widget.Anchor(); containsID(ids, cur) {
		anchor = cur
	} else if len(ids) > 0 {
		anchor = ids[0]
	}
	s.widget.SetSelection(ids, anchor)

	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if s.widget.RowVisible(id) {
			return
		}
	}
	s.widget.ScrollTo(ids[0])
}

func (s *Synchronizer) restore(ctx context.Context, snap *Snapshot) {
	ids := s.proxies(ctx, snap.Nodes)
	anchor := visualizer.NoID
	if snap.Anchor != nil {
		if p, err := s.bridge.ProxyFor(ctx, snap.Anchor); err == nil {
			anchor = p.ID()
		}
	}
	s.applying = true
	defer func() { s.applying = false }()
	for _, id := range ids {
		s.widget.Reveal(id)
	}
	s.widget.SetSelection(ids, anchor)
}

// proxies maps nodes to this view's proxies, skipping nodes the view
// cannot reach.
func (s *Synchronizer) proxies(ctx context.Context, nodes []node.Node) []visualizer.ID {
	ids := make([]visualizer.ID, 0, len(nodes))
	for _, n := range nodes {
		p, err := s.bridge.ProxyFor(ctx, n)
		if err != nil {
			debug.Log("explorer: %s not shown in this view: %v", safeLabel(n), err)
			continue
		}
		ids = append(ids, p.ID())
	}
	return ids
}

func (s *Synchronizer) managerChanged(ctx context.Context, c Change) {
	if s.issuing {
		return
	}
	switch c.Property {
	case PropRootContext:
		if !s.showExplored {
			s.pushRoot()
		}
	case PropExploredContext:
		if s.showExplored {
			s.pushRoot()
		}
	case PropSelectedNodes:
		s.pushSelection(ctx)
	}
}

// vetoable rejects selections this view cannot show in its mode or does
// not accept under its policy.
func (s *Synchronizer) vetoable(ctx context.Context, c Change) error {
	if !c.Touches(PropSelectedNodes) || len(c.New.Selection) == 0 {
		return nil
	}
	nodes := c.New.Selection
	if err := s.policy.Accept(c.New, nodes); err != nil {
		return Veto(PropSelectedNodes, "%s view: %v", s.policy.Name(), err)
	}
	if len(nodes) == 1 || s.mode == Discontiguous {
		return nil
	}
	if s.mode == Single {
		return Veto(PropSelectedNodes, "single selection mode, %d nodes proposed", len(nodes))
	}
	if !s.mode.Allows(s.positions(ctx, c.New, nodes)) {
		return Veto(PropSelectedNodes, "%d nodes are not contiguous", len(nodes))
	}
	return nil
}

// positions returns the display rows nodes would occupy in this view under
// the proposed state. Nodes the view cannot show are left out.
func (s *Synchronizer) positions(ctx context.Context, proposed State, nodes []node.Node) []int {
	root := s.viewRoot(proposed)
	if root != s.bridge.RootNode() {
		// The view will be rebuilt around a new root; rows are its children.
		var rows []int
		for _, n := range nodes {
			if i := node.IndexIn(root, n); i >= 0 {
				rows = append(rows, i)
			}
		}
		return rows
	}
	var rows []int
	for _, pos := range s.widget.DisplayPositions(s.proxies(ctx, nodes)) {
		if pos >= 0 {
			rows = append(rows, pos)
		}
	}
	return rows
}

func (s *Synchronizer) widgetSelectionChanged(ctx context.Context) {
	if s.applying || s.state != Attached {
		return
	}
	s.commitSelection(ctx, s.widget.Selection())
}

// commitSelection sends the widget's selection to the Manager, reverting
// the widget when the change is refused.
func (s *Synchronizer) commitSelection(ctx context.Context, ids []visualizer.ID) {
	root := s.mgr.RootContext()
	nodes := make([]node.Node, 0, len(ids))
	for _, id := range ids {
		p, ok := s.bridge.Proxy(id)
		if !ok {
			continue
		}
		if n := p.Node(); node.IsUnder(root, n) {
			nodes = append(nodes, n)
		}
	}

	s.issuing = true
	err := s.setSelection(ctx, nodes)
	s.issuing = false

	if err != nil {
		if IsVeto(err) {
			debug.Log("explorer: reverting widget: %v", err)
		} else {
			debug.Log("explorer: selection rejected: %v", err)
		}
		s.pushSelection(ctx)
	}
}

func (s *Synchronizer) setSelection(ctx context.Context, nodes []node.Node) error {
	if s.navigate {
		if parent := commonParent(nodes); parent != nil && parent != s.mgr.ExploredContext() &&
			node.IsUnder(s.mgr.RootContext(), parent) {
			return s.mgr.SetExploredContextAndSelection(ctx, parent, nodes)
		}
	}
	return s.mgr.SetSelectedNodes(ctx, nodes)
}

// widgetExpansionChanged moves selected rows hidden by a collapse up to the
// collapsed node.
func (s *Synchronizer) widgetExpansionChanged(ctx context.Context, id visualizer.ID, expanded bool) {
	if expanded || s.applying || s.state != Attached {
		return
	}
	sel := s.widget.Selection()
	next := make([]visualizer.ID, 0, len(sel))
	moved := false
	for _, sid := range sel {
		if sid != id && s.isDescendant(sid, id) {
			moved = true
			if !containsID(next, id) {
				next = append(next, id)
			}
			continue
		}
		if !containsID(next, sid) {
			next = append(next, sid)
		}
	}
	if !moved {
		return
	}
	s.applying = true
	s.widget.SetSelection(next, id)
	s.applying = false
	s.commitSelection(ctx, next)
}

func (s *Synchronizer) isDescendant(id, ancestor visualizer.ID) bool {
	for _, p := range s.bridge.Path(id) {
		if p == ancestor {
			return true
		}
	}
	return false
}

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

func containsID(ids []visualizer.ID, id visualizer.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func sameNodeSet(a, b []node.Node) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[node.Node]bool, len(a))
	for _, n := range a {
		set[n] = true
	}
	for _, n := range b {
		if !set[n] {
			return false
		}
	}
	return true
}
