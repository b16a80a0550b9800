// Package reorder turns a drop inside a folder into a permutation of the
// folder's children and applies it through the folder's reorderable index.
//
// Dragged children move as one block to the drop boundary, in their
// current relative order; every other child keeps its relative order.
// Reordering is best effort: an absent capability, an unresolvable drop or
// a failing permutation leaves the folder untouched and is only logged.
package reorder

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
)

// Result reports what a Reorder call did.
type Result int

const (
	// Applied: the permutation was applied.
	Applied Result = iota
	// Unchanged: the drop would not move anything.
	Unchanged
	// Rejected: the request was invalid or the capability is missing.
	Rejected
	// Failed: the folder refused or panicked while applying.
	Failed
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Unchanged:
		return "unchanged"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Errors describing why Permutation rejected a request.
var (
	ErrBounds    = errors.New("drop boundary out of range")
	ErrNoDragged = errors.New("no dragged child found in folder")
	ErrOnRow     = errors.New("drop on a row is not a reorder")
)

// Permutation computes perm for a folder of count children when the
// children at dragged (positions, any order, duplicates ignored) are
// dropped between positions upper and lower. perm[i] is the new position of
// the child at i.
//
// Normally upper+1 == lower. upper == -1 means "before the first child" and
// lower == count means "after the last". lower == upper is accepted only at
// the two ends, where it names the outer boundary of that row: (0,0) is
// above the first child and (count-1,count-1) below the last.
func Permutation(count int, dragged []int, lower, upper int) ([]int, error) {
	if lower == upper {
		switch {
		case lower == 0:
			upper = -1
		case lower == count-1:
			lower = count
		default:
			return nil, ErrOnRow
		}
	}
	if upper < -1 || lower > count || upper >= lower || count <= 0 {
		return nil, fmt.Errorf("%w: lower=%d upper=%d count=%d", ErrBounds, lower, upper, count)
	}

	isDragged := make([]bool, count)
	var sorted []int
	for _, d := range dragged {
		if d < 0 || d >= count || isDragged[d] {
			continue
		}
		isDragged[d] = true
		sorted = append(sorted, d)
	}
	if len(sorted) == 0 {
		return nil, ErrNoDragged
	}
	sort.Ints(sorted)

	perm := make([]int, count)
	k := 0
	placeBlock := func(keep func(d int) bool) {
		for _, d := range sorted {
			if keep(d) {
				perm[d] = k
				k++
			}
		}
	}
	for i := 0; i < count; i++ {
		if i <= upper {
			if !isDragged[i] {
				perm[i] = k
				k++
			}
			if i == upper {
				placeBlock(func(d int) bool { return d <= upper })
			}
			continue
		}
		if i == lower {
			placeBlock(func(d int) bool { return d > upper })
		}
		if !isDragged[i] {
			perm[i] = k
			k++
		}
	}
	if lower == count {
		placeBlock(func(d int) bool { return d > upper })
	}
	return perm, nil
}

// Reorder moves dragged, which must all be children of folder, to the drop
// boundary between positions upper and lower. It never panics and never
// returns an error; the Result says what happened.
func Reorder(folder node.Node, dragged []node.Node, lower, upper int) Result {
	idx, ok := node.ReorderableOf(folder)
	if !ok {
		debug.Log("reorder: %v has no reorderable index", folder)
		return Rejected
	}
	return reorderIndex(idx, dragged, lower, upper)
}

func reorderIndex(idx node.Reorderable, dragged []node.Node, lower, upper int) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CollaboratorPanics.Inc()
			log.Printf("warning: reorder panicked: %v", r)
			res = Failed
		}
	}()

	count := idx.Count()
	positions := make([]int, 0, len(dragged))
	for _, n := range dragged {
		if i := idx.IndexOf(n); i >= 0 {
			positions = append(positions, i)
		}
	}
	perm, err := Permutation(count, positions, lower, upper)
	if err != nil {
		debug.Log("reorder: %v", err)
		return Rejected
	}
	if node.IsIdentity(perm) {
		return Unchanged
	}

	stop := metrics.Timer(metrics.ReorderApply)
	err = idx.Reorder(perm)
	stop()
	if err != nil {
		log.Printf("warning: reorder failed: %v", err)
		return Failed
	}
	debug.Log("reorder: applied %v", perm)
	return Applied
}

// Move shifts the contiguous run of dragged children one position up
// (delta < 0) or down (delta > 0), the keyboard counterpart of a drag.
func Move(folder node.Node, dragged []node.Node, delta int) Result {
	idx, ok := node.ReorderableOf(folder)
	if !ok || delta == 0 {
		return Rejected
	}
	count := idx.Count()
	lo, hi := count, -1
	for _, n := range dragged {
		if i := idx.IndexOf(n); i >= 0 {
			lo = min(lo, i)
			hi = max(hi, i)
		}
	}
	if hi < 0 {
		return Rejected
	}
	if delta < 0 {
		if lo == 0 {
			return Unchanged
		}
		// Drop between lo-2 and lo-1.
		return reorderIndex(idx, dragged, lo-1, lo-2)
	}
	if hi == count-1 {
		return Unchanged
	}
	return reorderIndex(idx, dragged, hi+2, hi+1)
}
