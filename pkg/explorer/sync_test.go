package explorer

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/testutil"
	"github.com/vanderheijden86/nodeview/pkg/uithread"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

const outline = `
root/
  docs/
    a
    b
    c
  src/
    main
    util/
      x
      y
  README
`

type view struct {
	b *visualizer.Bridge
	w *testutil.Widget
	s *Synchronizer
}

func newView(l *uithread.Loop, opts ...SyncOption) *view {
	return newEvictingView(l, -1, opts...)
}

func newEvictingView(l *uithread.Loop, delay time.Duration, opts ...SyncOption) *view {
	b := visualizer.New(l, visualizer.WithEvictionDelay(delay))
	w := testutil.NewWidget(b)
	return &view{b: b, w: w, s: NewSynchronizer(b, w, opts...)}
}

func (v *view) id(t *testing.T, ctx context.Context, n node.Node) visualizer.ID {
	t.Helper()
	p, err := v.b.ProxyFor(ctx, n)
	if err != nil {
		t.Errorf("ProxyFor(%s): %v", n.DisplayName(), err)
		return visualizer.NoID
	}
	return p.ID()
}

func (v *view) selectedNames() []string {
	var out []string
	for _, id := range v.w.Selection() {
		if p, ok := v.b.Proxy(id); ok {
			out = append(out, p.Name())
		}
	}
	return out
}

func setup(t *testing.T) (*uithread.Loop, *node.Mem, *Manager) {
	t.Helper()
	l := testutil.StartLoop(t)
	root := testutil.Outline(outline)
	m := NewManager()
	testutil.On(t, l, func(ctx context.Context) {
		if err := m.SetRootContext(ctx, root); err != nil {
			t.Error(err)
		}
	})
	return l, root, m
}

func TestSynchronizer_AttachPushesState(t *testing.T) {
	l, root, m := setup(t)
	b := testutil.Lookup(root, "docs/b")
	v := newView(l)

	testutil.On(t, l, func(ctx context.Context) {
		_ = m.SetSelectedNodes(ctx, testutil.Nodes(b))
		if err := v.s.Attach(ctx, m); err != nil {
			t.Error(err)
			return
		}
		if err := v.s.Attach(ctx, m); err != ErrAttached {
			t.Errorf("second Attach: %v", err)
		}
		if v.w.Root() != v.b.Root() || v.b.RootNode() != node.Node(root) {
			t.Error("widget should show the root context")
		}
		if got := v.selectedNames(); !reflect.DeepEqual(got, []string{"b"}) {
			t.Errorf("selection=%v", got)
		}
		docs, _ := v.b.Lookup(testutil.Lookup(root, "docs"))
		if !v.b.IsExpanded(docs) {
			t.Error("ancestors of the selection should be expanded")
		}
	})
}

func TestSynchronizer_ManagerToViewScrollsIntoView(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l)
	y := testutil.Lookup(root, "src/util/y")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		v.w.Height = 2
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(y)); err != nil {
			t.Error(err)
			return
		}
		yid := v.id(t, ctx, y)
		if got := v.w.Selection(); !reflect.DeepEqual(got, []visualizer.ID{yid}) {
			t.Errorf("selection=%v, want [%d]", got, yid)
		}
		if len(v.w.Scrolled) != 1 || v.w.Scrolled[0] != yid {
			t.Errorf("Scrolled=%v", v.w.Scrolled)
		}
		if !v.w.RowVisible(yid) {
			t.Error("selected row should be visible after sync")
		}

		// Already visible: no further scrolling.
		_ = m.SetSelectedNodes(ctx, testutil.Nodes(y, testutil.Lookup(root, "README")))
		if len(v.w.Scrolled) != 1 {
			t.Errorf("scrolled again although a selected row was visible: %v", v.w.Scrolled)
		}
	})
}

func TestSynchronizer_ViewToManager(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l)
	a, c := testutil.Lookup(root, "docs/a"), testutil.Lookup(root, "docs/c")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		v.w.Click(ctx, v.id(t, ctx, a), v.id(t, ctx, c))
		testutil.AssertNodeNames(t, m.SelectedNodes(), "a", "c")
		if v.w.Applied != 1 {
			// one push at attach; the click must not echo back
			t.Errorf("widget selection applied %d times, want 1", v.w.Applied)
		}
	})
}

func TestSynchronizer_VetoRevertsWidget(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l)
	a, b := testutil.Lookup(root, "docs/a"), testutil.Lookup(root, "docs/b")

	testutil.On(t, l, func(ctx context.Context) {
		_ = m.SetSelectedNodes(ctx, testutil.Nodes(a))
		_ = v.s.Attach(ctx, m)
		before := v.w.Selection()

		m.OnVeto(func(_ context.Context, c Change) error {
			return Veto(c.Property, "always")
		})
		v.w.Click(ctx, v.id(t, ctx, b))

		if got := v.w.Selection(); !reflect.DeepEqual(got, before) {
			t.Errorf("widget selection=%v, want reverted %v", got, before)
		}
		testutil.AssertNodeNames(t, m.SelectedNodes(), "a")
	})
}

func TestSynchronizer_ContiguousMode(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l, WithSelectionMode(Contiguous))
	docs := testutil.Lookup(root, "docs")
	a, b, c := testutil.Lookup(docs, "a"), testutil.Lookup(docs, "b"), testutil.Lookup(docs, "c")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		docsID := v.id(t, ctx, docs)
		_ = v.b.Expand(docsID)

		// rows: docs(0) a(1) b(2) c(3) src(4) README(5)
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(a, b, c)); err != nil {
			t.Errorf("[1,2,3] should be accepted: %v", err)
		}
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(a, c)); !IsVeto(err) {
			t.Errorf("[1,3] should be vetoed, got %v", err)
		}
		testutil.AssertNodeNames(t, m.SelectedNodes(), "a", "b", "c")
	})
}

func TestSynchronizer_ContiguousUsesHypotheticalExpansion(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l, WithSelectionMode(Contiguous))
	docs := testutil.Lookup(root, "docs")
	y := testutil.Lookup(root, "src/util/y")
	readme := testutil.Lookup(root, "README")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		docsID := v.id(t, ctx, docs)

		// docs itself is a candidate, not an ancestor, so it stays
		// collapsed: docs(0) src(1) README(2).
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(docs, readme)); !IsVeto(err) {
			t.Errorf("docs+README should be vetoed, got %v", err)
		}
		if v.b.IsExpanded(docsID) {
			t.Error("the mode check must not expand folders")
		}

		// With src and util opened for the check: ... util x y README, so y
		// and README are adjacent although both folders are collapsed.
		srcID := v.id(t, ctx, testutil.Lookup(root, "src"))
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(y, readme)); err != nil {
			t.Errorf("y+README should be contiguous: %v", err)
		}
		if !v.b.IsExpanded(srcID) {
			t.Error("committed selection should be revealed")
		}
	})
}

func TestSynchronizer_VetoedProposalLeavesNoProxies(t *testing.T) {
	l, root, m := setup(t)
	v := newEvictingView(l, 20*time.Millisecond, WithSelectionMode(Contiguous))
	x := testutil.Lookup(root, "src/util/x")
	a := testutil.Lookup(root, "docs/a")

	var before int
	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		_ = v.w.Rows() // the visible region: root and its children
		before = v.b.Len()
		// docs a b c src main util x y README: a(1) and x(7) are apart.
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(x, a)); !IsVeto(err) {
			t.Errorf("x+a should be vetoed, got %v", err)
		}
	})
	time.Sleep(100 * time.Millisecond)

	testutil.On(t, l, func(context.Context) {
		if got := v.b.Len(); got != before {
			t.Errorf("proxies = %d after vetoed proposal, want %d", got, before)
		}
		for _, n := range []string{"docs", "src"} {
			id, _ := v.b.Lookup(testutil.Lookup(root, n))
			if v.b.IsExpanded(id) {
				t.Errorf("%s was expanded by the mode check", n)
			}
		}
	})
}

func TestSynchronizer_SingleMode(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l, WithSelectionMode(Single))
	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		err := m.SetSelectedNodes(ctx, testutil.Nodes(testutil.Lookup(root, "docs"), testutil.Lookup(root, "src")))
		if !IsVeto(err) {
			t.Errorf("err=%v, want veto", err)
		}
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(testutil.Lookup(root, "src"))); err != nil {
			t.Errorf("one node: %v", err)
		}
	})
}

func TestSynchronizer_FanOut(t *testing.T) {
	l, root, m := setup(t)
	v1, v2 := newView(l), newView(l)
	a := testutil.Lookup(root, "docs/a")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v1.s.Attach(ctx, m)
		_ = v2.s.Attach(ctx, m)
		applied1 := v1.w.Applied

		v1.w.Click(ctx, v1.id(t, ctx, a))

		if got := v2.selectedNames(); !reflect.DeepEqual(got, []string{"a"}) {
			t.Errorf("other view selection=%v", got)
		}
		if v1.w.Applied != applied1 {
			t.Error("the issuing view must not reapply its own change")
		}
		if v1.b == v2.b {
			t.Error("views must have separate bridges")
			return
		}
		p1, _ := v1.b.ProxyFor(ctx, a)
		p2, _ := v2.b.ProxyFor(ctx, a)
		if p1 == p2 {
			t.Error("proxies are per view")
		}
	})
}

func TestSynchronizer_FolderViewFollowsExploredContext(t *testing.T) {
	l, root, m := setup(t)
	list := newView(l, ShowExplored())
	docs := testutil.Lookup(root, "docs")

	testutil.On(t, l, func(ctx context.Context) {
		_ = list.s.Attach(ctx, m)
		if got := list.w.RowNames(); !reflect.DeepEqual(got, []string{"docs", "src", "README"}) {
			t.Errorf("rows=%v", got)
		}
		if err := list.s.Explore(ctx, docs); err != nil {
			t.Error(err)
			return
		}
		if list.b.RootNode() != node.Node(docs) {
			t.Error("folder view should be rebuilt around the explored context")
		}
		if got := list.w.RowNames(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("rows=%v", got)
		}

		// Outside the explored folder: vetoed. The root itself: accepted.
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(testutil.Lookup(root, "src/main"))); !IsVeto(err) {
			t.Errorf("outside folder: %v", err)
		}
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(root)); err != nil {
			t.Errorf("root: %v", err)
		}
		if err := m.SetSelectedNodes(ctx, testutil.Nodes(testutil.Lookup(docs, "b"))); err != nil {
			t.Errorf("inside folder: %v", err)
		}
	})
}

func TestSynchronizer_NavigatingTreeDrivesFolderView(t *testing.T) {
	l, root, m := setup(t)
	tree := newView(l, Navigate())
	list := newView(l, ShowExplored())
	x := testutil.Lookup(root, "src/util/x")

	testutil.On(t, l, func(ctx context.Context) {
		_ = tree.s.Attach(ctx, m)
		_ = list.s.Attach(ctx, m)

		tree.w.Reveal(tree.id(t, ctx, x))
		tree.w.Click(ctx, tree.id(t, ctx, x))

		if m.ExploredContext() != node.Node(testutil.Lookup(root, "src/util")) {
			t.Errorf("explored=%v", m.ExploredContext())
		}
		if got := list.w.RowNames(); !reflect.DeepEqual(got, []string{"x", "y"}) {
			t.Errorf("folder rows=%v", got)
		}
		if got := list.selectedNames(); !reflect.DeepEqual(got, []string{"x"}) {
			t.Errorf("folder selection=%v", got)
		}
	})
}

func TestSynchronizer_DetachRestoresSnapshot(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l)
	a, b := testutil.Lookup(root, "docs/a"), testutil.Lookup(root, "docs/b")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		_ = v.b.Expand(v.id(t, ctx, testutil.Lookup(root, "docs")))
		v.w.Click(ctx, v.id(t, ctx, a), v.id(t, ctx, b))
		v.w.SetSelection(v.w.Selection(), v.id(t, ctx, b))

		snap := v.s.Detach()
		if snap == nil || v.s.State() != Detached {
			t.Error("Detach should return a snapshot")
			return
		}
		if changes, vetoers := m.Listeners(); changes != 0 || vetoers != 0 {
			t.Errorf("listeners left: %d/%d", changes, vetoers)
		}
		if v.w.Listeners() != 0 {
			t.Errorf("widget listeners left: %d", v.w.Listeners())
		}
		if len(snap.Intervals) != 1 || snap.Intervals[0].To-snap.Intervals[0].From != 1 {
			t.Errorf("intervals=%v", snap.Intervals)
		}

		if err := v.s.Attach(ctx, m); err != nil {
			t.Error(err)
			return
		}
		if got := v.selectedNames(); !reflect.DeepEqual(got, []string{"a", "b"}) {
			t.Errorf("restored selection=%v", got)
		}
		anchor, _ := v.b.Proxy(v.w.Anchor())
		if anchor == nil || anchor.Name() != "b" {
			t.Errorf("anchor=%v, want b", anchor)
		}
	})
}

func TestSynchronizer_CollapseMovesSelectionUp(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l)
	util := testutil.Lookup(root, "src/util")
	x := testutil.Lookup(util, "x")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		_ = m.SetSelectedNodes(ctx, testutil.Nodes(x))
		v.w.Toggle(ctx, v.id(t, ctx, util), false)
		testutil.AssertNodeNames(t, m.SelectedNodes(), "util")
	})
}

func TestSynchronizer_StaleRowsAreFiltered(t *testing.T) {
	l, root, m := setup(t)
	v := newView(l)
	docs := testutil.Lookup(root, "docs")
	a, b := testutil.Lookup(docs, "a"), testutil.Lookup(docs, "b")

	testutil.On(t, l, func(ctx context.Context) {
		_ = v.s.Attach(ctx, m)
		aid, bid := v.id(t, ctx, a), v.id(t, ctx, b)
		// The removal's replay is queued behind this task, so b's proxy is
		// still in the arena when the click arrives.
		docs.Remove(b)
		v.w.Click(ctx, aid, bid)
		testutil.AssertNodeNames(t, m.SelectedNodes(), "a")
	})
}
