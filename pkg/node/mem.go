package node

import (
	"fmt"
	"sort"
)

// Mem is an in-memory node. All mutations take the graph's write access and
// fire events after the write completes, so Mem may be changed from any
// goroutine.
type Mem struct {
	g *Graph

	name        string
	desc        string
	leaf        bool
	reorderable bool
	destroyed   bool

	parent   *Mem
	children []*Mem

	emitter Emitter
}

// MemOption configures a Mem at construction.
type MemOption func(*Mem)

// Leaf marks the node as a leaf.
func Leaf() MemOption {
	return func(m *Mem) { m.leaf = true }
}

// WithReorder gives the node the reorderable-index capability.
func WithReorder() MemOption {
	return func(m *Mem) { m.reorderable = true }
}

// WithDescription sets the short description.
func WithDescription(desc string) MemOption {
	return func(m *Mem) { m.desc = desc }
}

// NewMem creates a detached root node with its own graph.
func NewMem(name string, opts ...MemOption) *Mem {
	return NewMemIn(NewGraph(), name, opts...)
}

// NewMemIn creates a detached node sharing lock g.
func NewMemIn(g *Graph, name string, opts ...MemOption) *Mem {
	m := &Mem{g: g, name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Graph returns the lock guarding this node.
func (m *Mem) Graph() *Graph { return m.g }

// Children implements Node.
func (m *Mem) Children() []Node {
	var out []Node
	m.g.ReadAccess(func() {
		out = make([]Node, len(m.children))
		for i, c := range m.children {
			out[i] = c
		}
	})
	return out
}

// Parent implements Node.
func (m *Mem) Parent() Node {
	var p *Mem
	m.g.ReadAccess(func() { p = m.parent })
	if p == nil {
		return nil
	}
	return p
}

// IsLeaf implements Node.
func (m *Mem) IsLeaf() bool {
	var leaf bool
	m.g.ReadAccess(func() { leaf = m.leaf })
	return leaf
}

// DisplayName implements Node.
func (m *Mem) DisplayName() string {
	var name string
	m.g.ReadAccess(func() { name = m.name })
	return name
}

// ShortDescription implements Node.
func (m *Mem) ShortDescription() string {
	var desc string
	m.g.ReadAccess(func() { desc = m.desc })
	return desc
}

// Subscribe implements Node.
func (m *Mem) Subscribe(fn func(Event)) func() {
	return m.emitter.Subscribe(fn)
}

// Reorderable implements ReorderProvider when the node was built WithReorder.
func (m *Mem) Reorderable() Reorderable {
	if !m.reorderable {
		return nil
	}
	return memIndex{m}
}

func (m *Mem) String() string {
	return m.DisplayName()
}

// NewChild creates a child named name and appends it.
func (m *Mem) NewChild(name string, opts ...MemOption) *Mem {
	c := NewMemIn(m.g, name, opts...)
	m.Add(c)
	return c
}

// Add appends detached nodes as children. Nodes built on another graph are
// moved onto this node's graph.
func (m *Mem) Add(children ...*Mem) {
	m.g.WriteAccess(func() {
		start := len(m.children)
		idx := make([]int, 0, len(children))
		nodes := make([]Node, 0, len(children))
		for i, c := range children {
			if c.parent != nil {
				panic(fmt.Sprintf("node: %q already has a parent", c.name))
			}
			c.rebind(m.g)
			c.parent = m
			m.children = append(m.children, c)
			idx = append(idx, start+i)
			nodes = append(nodes, c)
		}
		m.leaf = false
		m.g.Post(&m.emitter, Event{Kind: ChildrenAdded, Source: m, Indices: idx, Nodes: nodes})
	})
}

// Insert places a detached child at index.
func (m *Mem) Insert(index int, c *Mem) error {
	var err error
	m.g.WriteAccess(func() {
		if c.parent != nil {
			err = fmt.Errorf("node: %q already has a parent", c.name)
			return
		}
		if index < 0 || index > len(m.children) {
			err = fmt.Errorf("node: insert index %d out of range [0,%d]", index, len(m.children))
			return
		}
		c.rebind(m.g)
		c.parent = m
		m.children = append(m.children, nil)
		copy(m.children[index+1:], m.children[index:])
		m.children[index] = c
		m.leaf = false
		m.g.Post(&m.emitter, Event{Kind: ChildrenAdded, Source: m, Indices: []int{index}, Nodes: []Node{c}})
	})
	return err
}

// Remove detaches the given children. Nodes that are not children are
// ignored.
func (m *Mem) Remove(children ...*Mem) {
	m.g.WriteAccess(func() {
		drop := make(map[*Mem]bool, len(children))
		for _, c := range children {
			drop[c] = true
		}
		var idx []int
		var nodes []Node
		kept := m.children[:0:0]
		for i, c := range m.children {
			if drop[c] {
				c.parent = nil
				idx = append(idx, i)
				nodes = append(nodes, c)
				continue
			}
			kept = append(kept, c)
		}
		if len(idx) == 0 {
			return
		}
		m.children = kept
		m.g.Post(&m.emitter, Event{Kind: ChildrenRemoved, Source: m, Indices: idx, Nodes: nodes})
	})
}

// RemoveAt detaches the child at index.
func (m *Mem) RemoveAt(index int) error {
	var c *Mem
	m.g.ReadAccess(func() {
		if index >= 0 && index < len(m.children) {
			c = m.children[index]
		}
	})
	if c == nil {
		return fmt.Errorf("node: remove index %d out of range", index)
	}
	m.Remove(c)
	return nil
}

// SetName changes the display name.
func (m *Mem) SetName(name string) {
	m.setProp(PropDisplayName, func() bool {
		if m.name == name {
			return false
		}
		m.name = name
		return true
	})
}

// SetDescription changes the short description.
func (m *Mem) SetDescription(desc string) {
	m.setProp(PropShortDescription, func() bool {
		if m.desc == desc {
			return false
		}
		m.desc = desc
		return true
	})
}

func (m *Mem) setProp(prop string, apply func() bool) {
	m.g.WriteAccess(func() {
		if apply() {
			m.g.Post(&m.emitter, Event{Kind: PropertyChanged, Source: m, Property: prop})
		}
	})
}

// Reorder permutes the children; perm[i] is the new position of the child
// at i. It works whether or not the node advertises the capability.
func (m *Mem) Reorder(perm []int) error {
	var err error
	m.g.WriteAccess(func() {
		if m.destroyed {
			err = ErrDestroyed
			return
		}
		if err = ValidatePermutation(perm, len(m.children)); err != nil {
			return
		}
		if IsIdentity(perm) {
			return
		}
		m.children = ApplyPermutation(m.children, perm)
		p := make([]int, len(perm))
		copy(p, perm)
		m.g.Post(&m.emitter, Event{Kind: ChildrenReordered, Source: m, Perm: p})
	})
	return err
}

// SortChildren reorders children by less, emitting one reorder event.
func (m *Mem) SortChildren(less func(a, b *Mem) bool) error {
	var perm []int
	m.g.ReadAccess(func() {
		order := make([]int, len(m.children))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return less(m.children[order[i]], m.children[order[j]])
		})
		perm = InvertPermutation(order)
	})
	return m.Reorder(perm)
}

// Destroy detaches the node from its parent and notifies its subscribers.
func (m *Mem) Destroy() {
	if p, ok := m.Parent().(*Mem); ok {
		p.Remove(m)
	}
	m.g.WriteAccess(func() {
		if m.destroyed {
			return
		}
		m.destroyed = true
		m.g.Post(&m.emitter, Event{Kind: NodeDestroyed, Source: m})
	})
}

// Child returns the first child named name, or nil.
func (m *Mem) Child(name string) *Mem {
	var found *Mem
	m.g.ReadAccess(func() {
		for _, c := range m.children {
			if c.name == name {
				found = c
				return
			}
		}
	})
	return found
}

// ChildAt returns the child at index, or nil.
func (m *Mem) ChildAt(index int) *Mem {
	var c *Mem
	m.g.ReadAccess(func() {
		if index >= 0 && index < len(m.children) {
			c = m.children[index]
		}
	})
	return c
}

// Names returns the display names of the children in order.
func (m *Mem) Names() []string {
	var names []string
	m.g.ReadAccess(func() {
		names = make([]string, len(m.children))
		for i, c := range m.children {
			names[i] = c.name
		}
	})
	return names
}

// Subscribers returns the number of active subscriptions.
func (m *Mem) Subscribers() int {
	return m.emitter.Len()
}

// rebind moves a detached subtree onto g. Caller holds g's write access; the
// subtree is unreachable from any other graph so its own lock is not needed.
func (m *Mem) rebind(g *Graph) {
	if m.g == g {
		return
	}
	m.g = g
	for _, c := range m.children {
		c.rebind(g)
	}
}

type memIndex struct{ m *Mem }

func (x memIndex) Count() int {
	var n int
	x.m.g.ReadAccess(func() { n = len(x.m.children) })
	return n
}

func (x memIndex) IndexOf(child Node) int {
	c, ok := child.(*Mem)
	if !ok {
		return -1
	}
	idx := -1
	x.m.g.ReadAccess(func() {
		for i, cc := range x.m.children {
			if cc == c {
				idx = i
				return
			}
		}
	})
	return idx
}

func (x memIndex) Reorder(perm []int) error {
	return x.m.Reorder(perm)
}
