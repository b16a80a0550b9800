package explorer

import (
	"fmt"
	"sort"
	"strings"
)

// SelectionMode restricts which sets of rows a view may select.
type SelectionMode int

const (
	// Single allows at most one selected node.
	Single SelectionMode = iota
	// Contiguous allows one unbroken run of display rows.
	Contiguous
	// Discontiguous allows any set.
	Discontiguous
)

func (m SelectionMode) String() string {
	switch m {
	case Single:
		return "single"
	case Contiguous:
		return "contiguous"
	case Discontiguous:
		return "discontiguous"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseSelectionMode accepts the String forms, case-insensitively.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return Single, nil
	case "contiguous", "contiguous-interval", "interval":
		return Contiguous, nil
	case "discontiguous", "multiple", "":
		return Discontiguous, nil
	}
	return Discontiguous, fmt.Errorf("unknown selection mode %q", s)
}

// Allows reports whether a selection occupying the given display positions
// conforms to the mode. Positions need not be sorted.
func (m SelectionMode) Allows(positions []int) bool {
	if len(positions) <= 1 {
		return true
	}
	switch m {
	case Single:
		return false
	case Contiguous:
		sorted := append([]int(nil), positions...)
		sort.Ints(sorted)
		for i := 1; i < len(sorted); i++ {
			if sorted[i]-sorted[i-1] > 1 {
				return false
			}
		}
		return true
	default:
		return true
	}
}
