package visualizer

import "fmt"

// ChangeKind classifies a StructureEvent.
type ChangeKind int

const (
	// Inserted: children were added under Parent at Indices.
	Inserted ChangeKind = iota + 1
	// Removed: children at Indices (old positions) were dropped.
	Removed
	// Reordered: Parent's children were permuted; Perm[i] is the new index
	// of the child previously at i. Proxy identity is preserved.
	Reordered
	// Replaced: a mix of insertions, removals and moves; From..To covers
	// the new child list.
	Replaced
	// Refreshed: display metadata of IDs changed. Only those rows need
	// re-rendering.
	Refreshed
	// Evicted: IDs were dropped from the arena after a collapse.
	Evicted
	// RootChanged: the arena was rebuilt around a new root.
	RootChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Removed:
		return "removed"
	case Reordered:
		return "reordered"
	case Replaced:
		return "replaced"
	case Refreshed:
		return "refreshed"
	case Evicted:
		return "evicted"
	case RootChanged:
		return "root-changed"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// StructureEvent tells widgets what changed in the proxy tree. It is always
// delivered on the UI loop.
type StructureEvent struct {
	Kind   ChangeKind
	Parent ID

	// From and To bound the affected child index range, inclusive. Both are
	// -1 when no child range is involved.
	From, To int

	Indices  []int
	IDs      []ID
	Perm     []int
	Property string
}

func (e StructureEvent) String() string {
	return fmt.Sprintf("%s parent=%d range=[%d,%d] ids=%v", e.Kind, e.Parent, e.From, e.To, e.IDs)
}

func indexRange(indices []int) (from, to int) {
	if len(indices) == 0 {
		return -1, -1
	}
	from, to = indices[0], indices[0]
	for _, i := range indices[1:] {
		if i < from {
			from = i
		}
		if i > to {
			to = i
		}
	}
	return from, to
}
