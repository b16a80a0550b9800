// Package node defines the node graph consumed by the explorer views: the
// Node capability interface, the structural and property events it emits,
// the optional reorderable-index capability, and a cooperative read/write
// lock shared between graph readers and writers.
//
// The graph is owned by the application. It may be mutated from any
// goroutine; views never mutate it except through Reorderable.
package node

import (
	"errors"
	"fmt"
)

// Node is an identity-stable handle to a domain object. Implementations
// must be comparable (pointer types) because views key their caches by node.
type Node interface {
	// Children returns the current ordered children. It may compute them
	// lazily and block while doing so.
	Children() []Node
	// Parent returns the parent node, or nil for a root.
	Parent() Node
	// IsLeaf reports whether the node can never have children.
	IsLeaf() bool
	DisplayName() string
	ShortDescription() string
	// Subscribe registers fn for this node's events. Events may be delivered
	// on any goroutine. The returned function removes the subscription.
	Subscribe(fn func(Event)) (cancel func())
}

// EventKind identifies what changed on a node.
type EventKind int

const (
	ChildrenAdded EventKind = iota + 1
	ChildrenRemoved
	ChildrenReordered
	PropertyChanged
	NodeDestroyed
)

func (k EventKind) String() string {
	switch k {
	case ChildrenAdded:
		return "children-added"
	case ChildrenRemoved:
		return "children-removed"
	case ChildrenReordered:
		return "children-reordered"
	case PropertyChanged:
		return "property-changed"
	case NodeDestroyed:
		return "node-destroyed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Property names carried by PropertyChanged events.
const (
	PropDisplayName      = "displayName"
	PropShortDescription = "shortDescription"
	PropLeaf             = "leaf"
)

// Event describes a change on Source.
//
// For ChildrenAdded, Indices are positions in the new child list; for
// ChildrenRemoved they are positions in the old list. Nodes holds the
// affected children in the same order. For ChildrenReordered, Perm[i] is the
// new position of the child previously at position i.
type Event struct {
	Kind     EventKind
	Source   Node
	Indices  []int
	Nodes    []Node
	Perm     []int
	Property string
}

// Reorderable is the optional capability allowing a folder's children to be
// permuted in place.
type Reorderable interface {
	// Count returns the number of children.
	Count() int
	// IndexOf returns the position of child, or -1.
	IndexOf(child Node) int
	// Reorder applies perm, where perm[i] is the new position of the child
	// currently at position i.
	Reorder(perm []int) error
}

// ReorderProvider is implemented by nodes that expose a Reorderable.
type ReorderProvider interface {
	Reorderable() Reorderable
}

// Common errors.
var (
	ErrNotReorderable = errors.New("node has no reorderable index")
	ErrBadPermutation = errors.New("invalid permutation")
	ErrDestroyed      = errors.New("node destroyed")
	ErrNotChild       = errors.New("node is not a child of this folder")
)

// ReorderableOf returns the reorderable-index capability of n, if any.
func ReorderableOf(n Node) (Reorderable, bool) {
	if n == nil {
		return nil, false
	}
	p, ok := n.(ReorderProvider)
	if !ok {
		return nil, false
	}
	r := p.Reorderable()
	if r == nil {
		return nil, false
	}
	return r, true
}

// ValidatePermutation checks that perm is a permutation of 0..n-1.
func ValidatePermutation(perm []int, n int) error {
	if len(perm) != n {
		return fmt.Errorf("%w: length %d, want %d", ErrBadPermutation, len(perm), n)
	}
	seen := make([]bool, n)
	for i, p := range perm {
		if p < 0 || p >= n {
			return fmt.Errorf("%w: perm[%d]=%d out of range", ErrBadPermutation, i, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: position %d assigned twice", ErrBadPermutation, p)
		}
		seen[p] = true
	}
	return nil
}

// IsIdentity reports whether perm leaves every position unchanged.
func IsIdentity(perm []int) bool {
	for i, p := range perm {
		if p != i {
			return false
		}
	}
	return true
}

// ApplyPermutation returns a new slice where out[perm[i]] = items[i].
func ApplyPermutation[T any](items []T, perm []int) []T {
	out := make([]T, len(items))
	for i, p := range perm {
		out[p] = items[i]
	}
	return out
}

// InvertPermutation returns inv such that inv[perm[i]] = i.
func InvertPermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
