// Package explorer holds the state shared by explorer views and the
// protocol that keeps each view in step with it.
//
// A Manager owns the root context, the explored context and the selected
// nodes. Every change is offered to vetoable listeners first and committed
// only if none of them objects; committed changes are then announced to
// property listeners. A Synchronizer binds one Widget to a Manager in both
// directions.
//
// Managers, Synchronizers and Widgets are confined to the UI loop. The ctx
// handed to setters and listeners is the loop task context, so code reached
// from them can call loop-aware APIs without re-posting.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
)

// Property names announced by a Manager.
const (
	PropRootContext     = "rootContext"
	PropExploredContext = "exploredContext"
	PropSelectedNodes   = "selectedNodes"
)

// Common errors.
var (
	ErrNoRoot       = errors.New("manager has no root context")
	ErrNotUnderRoot = errors.New("node is not under the root context")
	ErrNilNode      = errors.New("nil node in selection")
)

// VetoError is returned by setters when a vetoable listener rejected the
// change. It is expected control flow, not a fault.
type VetoError struct {
	Property string
	Reason   string
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("change of %s vetoed: %s", e.Property, e.Reason)
}

// Veto builds a VetoError for prop.
func Veto(prop, format string, args ...any) *VetoError {
	return &VetoError{Property: prop, Reason: fmt.Sprintf(format, args...)}
}

// IsVeto reports whether err is, or wraps, a VetoError.
func IsVeto(err error) bool {
	var v *VetoError
	return errors.As(err, &v)
}

// State is a snapshot of a Manager's observable state.
type State struct {
	Root      node.Node
	Explored  node.Node
	Selection []node.Node
}

// Change describes a proposed or committed state transition. Property is
// the first property that differs; Old and New carry the complete states.
type Change struct {
	Property string
	Old, New State
}

// Touches reports whether the change alters prop.
func (c Change) Touches(prop string) bool {
	switch prop {
	case PropRootContext:
		return c.Old.Root != c.New.Root
	case PropExploredContext:
		return c.Old.Explored != c.New.Explored
	case PropSelectedNodes:
		return !sameNodes(c.Old.Selection, c.New.Selection)
	}
	return false
}

// ChangeListener observes committed changes, once per altered property.
type ChangeListener func(ctx context.Context, c Change)

// VetoListener inspects a proposed change; a non-nil return rejects it.
type VetoListener func(ctx context.Context, c Change) error

type changeSub struct {
	id int
	fn ChangeListener
}

type vetoSub struct {
	id int
	fn VetoListener
}

// Manager is the observable, vetoable explorer state. The zero value is not
// usable; call NewManager.
type Manager struct {
	state State

	next     int
	changes  []changeSub
	vetoers  []vetoSub
	inFlight int
}

// NewManager returns a Manager with no root context.
func NewManager() *Manager {
	return &Manager{}
}

// RootContext returns the root node.
func (m *Manager) RootContext() node.Node { return m.state.Root }

// ExploredContext returns the node whose children are being explored.
func (m *Manager) ExploredContext() node.Node { return m.state.Explored }

// SelectedNodes returns a copy of the current selection.
func (m *Manager) SelectedNodes() []node.Node {
	out := make([]node.Node, len(m.state.Selection))
	copy(out, m.state.Selection)
	return out
}

// State returns a copy of the full state.
func (m *Manager) State() State {
	st := m.state
	st.Selection = m.SelectedNodes()
	return st
}

// Updating reports whether a setter is currently running.
func (m *Manager) Updating() bool { return m.inFlight > 0 }

// OnChange registers a property listener.
func (m *Manager) OnChange(fn ChangeListener) (cancel func()) {
	m.next++
	id := m.next
	m.changes = append(m.changes, changeSub{id: id, fn: fn})
	return func() {
		for i, s := range m.changes {
			if s.id == id {
				m.changes = append(m.changes[:i:i], m.changes[i+1:]...)
				return
			}
		}
	}
}

// OnVeto registers a vetoable-change listener.
func (m *Manager) OnVeto(fn VetoListener) (cancel func()) {
	m.next++
	id := m.next
	m.vetoers = append(m.vetoers, vetoSub{id: id, fn: fn})
	return func() {
		for i, s := range m.vetoers {
			if s.id == id {
				m.vetoers = append(m.vetoers[:i:i], m.vetoers[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of property and veto listeners.
func (m *Manager) Listeners() (changes, vetoers int) {
	return len(m.changes), len(m.vetoers)
}

// SetRootContext replaces the root. The explored context moves to the new
// root and the selection is cleared.
func (m *Manager) SetRootContext(ctx context.Context, root node.Node) error {
	return m.propose(ctx, State{Root: root, Explored: root})
}

// SetExploredContext explores n, which must be under the root, and clears
// the selection.
func (m *Manager) SetExploredContext(ctx context.Context, n node.Node) error {
	return m.SetExploredContextAndSelection(ctx, n, nil)
}

// SetExploredContextAndSelection explores n and selects nodes in one
// vetoable change.
func (m *Manager) SetExploredContextAndSelection(ctx context.Context, n node.Node, nodes []node.Node) error {
	if m.state.Root == nil {
		return ErrNoRoot
	}
	if !node.IsUnder(m.state.Root, n) {
		return fmt.Errorf("explore %v: %w", n, ErrNotUnderRoot)
	}
	sel, err := m.normalize(nodes)
	if err != nil {
		return err
	}
	return m.propose(ctx, State{Root: m.state.Root, Explored: n, Selection: sel})
}

// SetSelectedNodes replaces the selection. Duplicates are dropped keeping
// the first occurrence; every node must be under the root context.
func (m *Manager) SetSelectedNodes(ctx context.Context, nodes []node.Node) error {
	sel, err := m.normalize(nodes)
	if err != nil {
		return err
	}
	return m.propose(ctx, State{Root: m.state.Root, Explored: m.state.Explored, Selection: sel})
}

func (m *Manager) normalize(nodes []node.Node) ([]node.Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	if m.state.Root == nil {
		return nil, ErrNoRoot
	}
	seen := make(map[node.Node]bool, len(nodes))
	out := make([]node.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return nil, ErrNilNode
		}
		if seen[n] {
			continue
		}
		if !node.IsUnder(m.state.Root, n) {
			return nil, fmt.Errorf("select %s: %w", safeLabel(n), ErrNotUnderRoot)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// propose runs the vetoable listeners over next and commits it when none
// objects.
func (m *Manager) propose(ctx context.Context, next State) error {
	c := Change{Old: m.State(), New: next}
	for _, prop := range []string{PropRootContext, PropExploredContext, PropSelectedNodes} {
		if c.Touches(prop) {
			c.Property = prop
			break
		}
	}
	if c.Property == "" {
		return nil
	}

	m.inFlight++
	defer func() { m.inFlight-- }()

	for _, v := range append([]vetoSub(nil), m.vetoers...) {
		if err := callVeto(ctx, v.fn, c); err != nil {
			metrics.Vetoes.Inc()
			debug.Log("explorer: %v", err)
			return err
		}
	}

	m.state = next
	m.state.Selection = append([]node.Node(nil), next.Selection...)

	for _, prop := range []string{PropRootContext, PropExploredContext, PropSelectedNodes} {
		if !c.Touches(prop) {
			continue
		}
		pc := c
		pc.Property = prop
		for _, l := range append([]changeSub(nil), m.changes...) {
			callChange(ctx, l.fn, pc)
		}
	}
	return nil
}

func callVeto(ctx context.Context, fn VetoListener, c Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CollaboratorPanics.Inc()
			log.Printf("warning: veto listener panicked on %s: %v", c.Property, r)
			err = Veto(c.Property, "listener failed: %v", r)
		}
	}()
	err = fn(ctx, c)
	if err != nil && !IsVeto(err) {
		err = &VetoError{Property: c.Property, Reason: err.Error()}
	}
	return err
}

func callChange(ctx context.Context, fn ChangeListener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CollaboratorPanics.Inc()
			log.Printf("warning: change listener panicked on %s: %v", c.Property, r)
		}
	}()
	fn(ctx, c)
}

func sameNodes(a, b []node.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func safeLabel(n node.Node) (s string) {
	defer func() {
		if recover() != nil {
			s = "<node>"
		}
	}()
	return n.DisplayName()
}
