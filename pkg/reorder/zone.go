package reorder

import (
	"fmt"

	"github.com/vanderheijden86/nodeview/pkg/node"
)

// Zone is where the pointer sits relative to the row under it.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneAbove
	ZoneOn
	ZoneBelow
)

func (z Zone) String() string {
	switch z {
	case ZoneNone:
		return "none"
	case ZoneAbove:
		return "above"
	case ZoneOn:
		return "on"
	case ZoneBelow:
		return "below"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// ZoneAt classifies a pointer offset within a row of the given height: the
// top quarter is above, the bottom quarter below, the rest on the row.
// Offsets outside the row yield ZoneNone.
func ZoneAt(offset, height int) Zone {
	if height <= 0 || offset < 0 || offset >= height {
		return ZoneNone
	}
	switch {
	case offset*4 < height:
		return ZoneAbove
	case offset*4 >= height*3:
		return ZoneBelow
	default:
		return ZoneOn
	}
}

// DropTarget is the resolved insertion point of a drag gesture. It lives
// only for the gesture.
type DropTarget struct {
	Folder node.Node
	// Row is the position of the hovered child within Folder.
	Row  int
	Zone Zone
	// Upper and Lower are the sibling positions the drop falls between.
	// Upper is -1 before the first child; Lower is Count after the last.
	Upper, Lower int
}

// CanReorder reports whether dropping here permutes Folder's children.
func (t DropTarget) CanReorder() bool {
	return t.Folder != nil && (t.Zone == ZoneAbove || t.Zone == ZoneBelow)
}

func (t DropTarget) String() string {
	if !t.CanReorder() {
		return fmt.Sprintf("%s row %d", t.Zone, t.Row)
	}
	return fmt.Sprintf("%s row %d (between %d and %d)", t.Zone, t.Row, t.Upper, t.Lower)
}

// Resolve turns a hovered row and zone into a drop target. Above a row, the
// row's predecessor is the upper bound and the row itself the lower bound;
// below a row it is the mirror. On a row there is no boundary.
func Resolve(folder node.Node, row int, zone Zone) DropTarget {
	t := DropTarget{Folder: folder, Row: row, Zone: zone, Upper: -1, Lower: -1}
	switch zone {
	case ZoneAbove:
		t.Upper, t.Lower = row-1, row
	case ZoneBelow:
		t.Upper, t.Lower = row, row+1
	}
	return t
}
