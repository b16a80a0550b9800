package reorder

import (
	"context"
	"time"

	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/uithread"
)

// DefaultHoverExpandDelay is how long the pointer must rest on a collapsed
// folder row before the session asks for it to be expanded.
const DefaultHoverExpandDelay = 700 * time.Millisecond

// ExpandFunc expands the folder the pointer rested on.
type ExpandFunc func(ctx context.Context, folder node.Node)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHoverExpand sets the hover-expand delay and callback. A delay <= 0
// disables hover expansion.
func WithHoverExpand(d time.Duration, fn ExpandFunc) SessionOption {
	return func(s *Session) {
		s.hoverDelay = d
		s.expand = fn
	}
}

// Session tracks one drag gesture over the children of a folder. All methods
// must be called on the loop. A session ends on Drop, Exit or Hidden; after
// that every method is a no-op.
type Session struct {
	loop    *uithread.Loop
	folder  node.Node
	dragged []node.Node

	target    DropTarget
	hasTarget bool

	hoverDelay time.Duration
	expand     ExpandFunc
	hoverRow   int
	hoverTimer *uithread.Timer

	ended bool
}

// NewSession starts a drag of dragged within folder.
func NewSession(loop *uithread.Loop, folder node.Node, dragged []node.Node, opts ...SessionOption) *Session {
	s := &Session{
		loop:       loop,
		folder:     folder,
		dragged:    append([]node.Node(nil), dragged...),
		hoverDelay: DefaultHoverExpandDelay,
		hoverRow:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Folder returns the folder being reordered.
func (s *Session) Folder() node.Node { return s.folder }

// Dragged returns the dragged nodes.
func (s *Session) Dragged() []node.Node { return s.dragged }

// Ended reports whether the gesture is over.
func (s *Session) Ended() bool { return s.ended }

// Target returns the current drop target, if any.
func (s *Session) Target() (DropTarget, bool) {
	return s.target, s.hasTarget && !s.ended
}

// Over updates the drop target for a pointer at offset within the row at
// position row of the folder. Resting on a collapsed folder row arms the
// hover-expand timer; moving to another row or zone disarms it.
func (s *Session) Over(row, offset, height int) DropTarget {
	if s.ended {
		return DropTarget{}
	}
	zone := ZoneAt(offset, height)
	if zone == ZoneNone {
		s.clearTarget()
		return DropTarget{}
	}
	s.target = Resolve(s.folder, row, zone)
	s.hasTarget = true

	if zone != ZoneOn {
		s.cancelHover()
		return s.target
	}
	if row != s.hoverRow {
		s.cancelHover()
		s.armHover(row)
	}
	return s.target
}

// Exit clears the target when the pointer leaves the widget. The session
// stays alive so the pointer can come back.
func (s *Session) Exit() {
	if s.ended {
		return
	}
	s.clearTarget()
}

// Hidden ends the session because the owning widget is no longer visible.
func (s *Session) Hidden() {
	s.end()
}

// Drop ends the session and applies the reorder for the current target.
// Drops on a row, or without a target, report Rejected.
func (s *Session) Drop() Result {
	if s.ended {
		return Rejected
	}
	t, ok := s.target, s.hasTarget
	s.end()
	if !ok || !t.CanReorder() {
		debug.Log("reorder: drop without a boundary (%v)", t)
		return Rejected
	}
	return Reorder(s.folder, s.dragged, t.Lower, t.Upper)
}

func (s *Session) clearTarget() {
	s.target = DropTarget{}
	s.hasTarget = false
	s.cancelHover()
}

func (s *Session) end() {
	s.clearTarget()
	s.ended = true
}

func (s *Session) armHover(row int) {
	if s.expand == nil || s.hoverDelay <= 0 {
		return
	}
	children := s.folder.Children()
	if row < 0 || row >= len(children) || children[row] == nil || children[row].IsLeaf() {
		return
	}
	candidate := children[row]
	s.hoverRow = row
	s.hoverTimer = s.loop.AfterFunc(s.hoverDelay, func(ctx context.Context) {
		if s.ended || s.hoverRow != row {
			return
		}
		s.hoverTimer = nil
		s.expand(ctx, candidate)
	})
}

func (s *Session) cancelHover() {
	s.hoverTimer.Stop()
	s.hoverTimer = nil
	s.hoverRow = -1
}
