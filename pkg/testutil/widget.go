package testutil

import (
	"context"
	"testing"

	"github.com/vanderheijden86/nodeview/pkg/uithread"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// StartLoop runs a UI loop on its own goroutine until the test ends.
func StartLoop(t *testing.T) *uithread.Loop {
	t.Helper()
	l := uithread.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		l.Stop()
	})
	return l
}

// On runs fn on l and waits for it. fn must not call t.Fatal.
func On(t *testing.T, l *uithread.Loop, fn func(ctx context.Context)) {
	t.Helper()
	if err := l.Invoke(context.Background(), fn); err != nil {
		t.Fatalf("invoke on ui loop: %v", err)
	}
}

// Widget is an in-memory tree widget for protocol tests. Rows are the
// visible descendants of the root in pre-order; the root itself has no
// row. The viewport shows Height rows starting at Top.
type Widget struct {
	B *visualizer.Bridge

	Top    int
	Height int

	root   visualizer.ID
	sel    []visualizer.ID
	anchor visualizer.ID

	nextSub  int
	selSubs  map[int]func(context.Context)
	expSubs  map[int]func(context.Context, visualizer.ID, bool)
	Scrolled []visualizer.ID
	Applied  int
}

// NewWidget returns a widget over b with a 10-row viewport.
func NewWidget(b *visualizer.Bridge) *Widget {
	return &Widget{
		B:       b,
		Height:  10,
		selSubs: make(map[int]func(context.Context)),
		expSubs: make(map[int]func(context.Context, visualizer.ID, bool)),
	}
}

// SetRoot implements explorer.Widget.
func (w *Widget) SetRoot(root visualizer.ID) {
	w.root = root
	w.sel = nil
	w.anchor = visualizer.NoID
	w.Top = 0
}

// Root returns the shown root.
func (w *Widget) Root() visualizer.ID { return w.root }

// Selection implements explorer.Widget.
func (w *Widget) Selection() []visualizer.ID {
	return append([]visualizer.ID(nil), w.sel...)
}

// Anchor implements explorer.Widget.
func (w *Widget) Anchor() visualizer.ID { return w.anchor }

// SetSelection implements explorer.Widget.
func (w *Widget) SetSelection(ids []visualizer.ID, anchor visualizer.ID) {
	w.Applied++
	w.sel = append([]visualizer.ID(nil), ids...)
	w.anchor = anchor
}

// Reveal implements explorer.Widget.
func (w *Widget) Reveal(id visualizer.ID) {
	path := w.B.Path(id)
	if len(path) == 0 {
		return
	}
	for _, anc := range path[:len(path)-1] {
		_ = w.B.Expand(anc)
	}
}

// Rows returns the visible rows.
func (w *Widget) Rows() []visualizer.ID {
	return w.rows(nil)
}

// RowNames returns the names of the visible rows.
func (w *Widget) RowNames() []string {
	rows := w.Rows()
	out := make([]string, len(rows))
	for i, id := range rows {
		if p, ok := w.B.Proxy(id); ok {
			out[i] = p.Name()
		}
	}
	return out
}

func (w *Widget) rows(extra map[visualizer.ID]bool) []visualizer.ID {
	if _, ok := w.B.Proxy(w.root); !ok {
		return nil
	}
	var out []visualizer.ID
	var walk func(id visualizer.ID)
	walk = func(id visualizer.ID) {
		for _, c := range w.B.Children(id) {
			out = append(out, c)
			if w.B.IsExpanded(c) || extra[c] {
				walk(c)
			}
		}
	}
	walk(w.root)
	return out
}

// Row implements explorer.Widget.
func (w *Widget) Row(id visualizer.ID) int {
	for i, r := range w.Rows() {
		if r == id {
			return i
		}
	}
	return -1
}

// DisplayPositions implements explorer.Widget.
func (w *Widget) DisplayPositions(ids []visualizer.ID) []int {
	extra := make(map[visualizer.ID]bool)
	for _, id := range ids {
		path := w.B.Path(id)
		if len(path) > 1 {
			for _, anc := range path[:len(path)-1] {
				extra[anc] = true
			}
		}
	}
	index := make(map[visualizer.ID]int)
	for i, r := range w.rows(extra) {
		index[r] = i
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		if pos, ok := index[id]; ok {
			out[i] = pos
		} else {
			out[i] = -1
		}
	}
	return out
}

// RowVisible implements explorer.Widget.
func (w *Widget) RowVisible(id visualizer.ID) bool {
	r := w.Row(id)
	return r >= w.Top && r < w.Top+w.Height
}

// ScrollTo implements explorer.Widget.
func (w *Widget) ScrollTo(id visualizer.ID) {
	w.Scrolled = append(w.Scrolled, id)
	if r := w.Row(id); r >= 0 {
		w.Top = r
	}
}

// SetExpanded implements explorer.Widget.
func (w *Widget) SetExpanded(id visualizer.ID, expanded bool) {
	if expanded {
		_ = w.B.Expand(id)
	} else {
		_ = w.B.Collapse(id)
	}
}

// Expanded implements explorer.Widget.
func (w *Widget) Expanded(id visualizer.ID) bool { return w.B.IsExpanded(id) }

// OnSelectionChanged implements explorer.Widget.
func (w *Widget) OnSelectionChanged(fn func(context.Context)) func() {
	w.nextSub++
	id := w.nextSub
	w.selSubs[id] = fn
	return func() { delete(w.selSubs, id) }
}

// OnExpansionChanged implements explorer.Widget.
func (w *Widget) OnExpansionChanged(fn func(context.Context, visualizer.ID, bool)) func() {
	w.nextSub++
	id := w.nextSub
	w.expSubs[id] = fn
	return func() { delete(w.expSubs, id) }
}

// Listeners returns the number of registered selection and expansion
// listeners.
func (w *Widget) Listeners() int { return len(w.selSubs) + len(w.expSubs) }

// Click simulates the user selecting ids.
func (w *Widget) Click(ctx context.Context, ids ...visualizer.ID) {
	w.sel = append([]visualizer.ID(nil), ids...)
	if len(ids) > 0 {
		w.anchor = ids[0]
	}
	for _, fn := range w.selSubs {
		fn(ctx)
	}
}

// Toggle simulates the user expanding or collapsing id.
func (w *Widget) Toggle(ctx context.Context, id visualizer.ID, expanded bool) {
	w.SetExpanded(id, expanded)
	for _, fn := range w.expSubs {
		fn(ctx, id, expanded)
	}
}
