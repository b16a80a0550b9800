package explorer

import (
	"context"

	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// Widget is the view side of the protocol: a tree, list or table showing a
// proxy tree from a visualizer.Bridge. All methods run on the UI loop.
type Widget interface {
	// SetRoot shows the tree under root; NoID clears the widget. The
	// selection is cleared.
	SetRoot(root visualizer.ID)

	// Selection returns the selected proxies in row order.
	Selection() []visualizer.ID
	// Anchor returns the proxy a range extension starts from, or NoID.
	Anchor() visualizer.ID
	// SetSelection replaces the selection. It must not fire selection
	// listeners.
	SetSelection(ids []visualizer.ID, anchor visualizer.ID)

	// Reveal expands whatever is needed for id to occupy a row.
	Reveal(id visualizer.ID)
	// Row returns the row id currently occupies, or -1.
	Row(id visualizer.ID) int
	// DisplayPositions returns the rows ids would occupy if all of their
	// ancestors were expanded, -1 for ids the widget cannot show. Expansion
	// state is left untouched.
	DisplayPositions(ids []visualizer.ID) []int
	// RowVisible reports whether id's row lies inside the viewport.
	RowVisible(id visualizer.ID) bool
	// ScrollTo brings id's row into the viewport.
	ScrollTo(id visualizer.ID)

	// SetExpanded expands or collapses id. It must not fire expansion
	// listeners.
	SetExpanded(id visualizer.ID, expanded bool)
	// Expanded reports whether id is expanded.
	Expanded(id visualizer.ID) bool

	// OnSelectionChanged registers fn for user-driven selection changes.
	OnSelectionChanged(fn func(ctx context.Context)) (cancel func())
	// OnExpansionChanged registers fn for user-driven expand and collapse.
	OnExpansionChanged(fn func(ctx context.Context, id visualizer.ID, expanded bool)) (cancel func())
}

// Interval is an inclusive run of selected rows.
type Interval struct {
	From, To int
}

// Snapshot records a widget's selection so it can be put back when the
// same widget is attached again.
type Snapshot struct {
	Widget    Widget
	Mode      SelectionMode
	Anchor    node.Node
	Nodes     []node.Node
	Intervals []Interval
}

// intervals groups sorted rows into runs.
func intervals(rows []int) []Interval {
	var out []Interval
	for _, r := range rows {
		if r < 0 {
			continue
		}
		if n := len(out); n > 0 && r <= out[n-1].To+1 {
			if r > out[n-1].To {
				out[n-1].To = r
			}
			continue
		}
		out = append(out, Interval{From: r, To: r})
	}
	return out
}
