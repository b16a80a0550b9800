package reorder

import (
	"context"
	"testing"
	"time"

	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/testutil"
)

func TestZoneAt(t *testing.T) {
	tests := []struct {
		offset, height int
		want           Zone
	}{
		{0, 4, ZoneAbove},
		{1, 4, ZoneOn},
		{2, 4, ZoneOn},
		{3, 4, ZoneBelow},
		{0, 8, ZoneAbove},
		{1, 8, ZoneAbove},
		{2, 8, ZoneOn},
		{5, 8, ZoneOn},
		{6, 8, ZoneBelow},
		{0, 1, ZoneAbove},
		{4, 4, ZoneNone},
		{-1, 4, ZoneNone},
		{0, 0, ZoneNone},
	}
	for _, tt := range tests {
		if got := ZoneAt(tt.offset, tt.height); got != tt.want {
			t.Errorf("ZoneAt(%d,%d)=%v, want %v", tt.offset, tt.height, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	f := letters()
	above := Resolve(f, 2, ZoneAbove)
	if above.Upper != 1 || above.Lower != 2 || !above.CanReorder() {
		t.Errorf("above row 2: %+v", above)
	}
	below := Resolve(f, 4, ZoneBelow)
	if below.Upper != 4 || below.Lower != 5 {
		t.Errorf("below row 4: %+v", below)
	}
	if on := Resolve(f, 1, ZoneOn); on.CanReorder() {
		t.Errorf("on a row should not reorder: %v", on)
	}
}

// hoverFixture is a folder with a collapsed subfolder at row 1.
func hoverFixture() *node.Mem {
	return testutil.Outline(`
root/
  a
  sub/
    x
  b
`)
}

func TestSession_DropAppliesTarget(t *testing.T) {
	l := testutil.StartLoop(t)
	f := letters()
	testutil.On(t, l, func(ctx context.Context) {
		s := NewSession(l, f, testutil.Nodes(testutil.Lookup(f, "E")))
		s.Over(3, 1, 4) // on D
		s.Over(0, 0, 4) // above A
		if tgt, ok := s.Target(); !ok || tgt.Upper != -1 || tgt.Lower != 0 {
			t.Errorf("target=%+v ok=%v", tgt, ok)
		}
		if got := s.Drop(); got != Applied {
			t.Errorf("Drop=%v", got)
		}
		if !s.Ended() {
			t.Error("drop should end the session")
		}
		if got := s.Drop(); got != Rejected {
			t.Errorf("second drop=%v, want rejected", got)
		}
	})
	testutil.AssertNames(t, f, "E", "A", "B", "C", "D")
}

func TestSession_DropOnRowIsNotReorder(t *testing.T) {
	l := testutil.StartLoop(t)
	f := letters()
	testutil.On(t, l, func(ctx context.Context) {
		s := NewSession(l, f, testutil.Nodes(testutil.Lookup(f, "A")))
		s.Over(2, 2, 4)
		if got := s.Drop(); got != Rejected {
			t.Errorf("Drop=%v, want rejected", got)
		}
	})
	testutil.AssertNames(t, f, "A", "B", "C", "D", "E")
}

func TestSession_ExitClearsTarget(t *testing.T) {
	l := testutil.StartLoop(t)
	f := letters()
	testutil.On(t, l, func(ctx context.Context) {
		s := NewSession(l, f, testutil.Nodes(testutil.Lookup(f, "A")))
		s.Over(4, 3, 4)
		s.Exit()
		if _, ok := s.Target(); ok {
			t.Error("exit should clear the target")
		}
		if s.Ended() {
			t.Error("exit should not end the session")
		}
		if got := s.Drop(); got != Rejected {
			t.Errorf("Drop after exit=%v", got)
		}
	})
}

func TestSession_HoverExpandsFolder(t *testing.T) {
	l := testutil.StartLoop(t)
	root := hoverFixture()
	expanded := make(chan node.Node, 1)
	expand := func(_ context.Context, n node.Node) { expanded <- n }

	testutil.On(t, l, func(ctx context.Context) {
		s := NewSession(l, root, testutil.Nodes(testutil.Lookup(root, "a")),
			WithHoverExpand(20*time.Millisecond, expand))
		s.Over(1, 2, 4)
	})

	select {
	case n := <-expanded:
		if n.DisplayName() != "sub" {
			t.Errorf("expanded %s, want sub", n.DisplayName())
		}
	case <-time.After(time.Second):
		t.Fatal("hover did not expand the folder")
	}
}

func TestSession_HoverCancelled(t *testing.T) {
	tests := []struct {
		name string
		act  func(s *Session)
	}{
		{"exit", func(s *Session) { s.Exit() }},
		{"drop", func(s *Session) { s.Drop() }},
		{"hidden", func(s *Session) { s.Hidden() }},
		{"moved_above", func(s *Session) { s.Over(1, 0, 4) }},
		{"moved_to_leaf", func(s *Session) { s.Over(2, 2, 4) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testutil.StartLoop(t)
			root := hoverFixture()
			expanded := make(chan node.Node, 1)
			expand := func(_ context.Context, n node.Node) { expanded <- n }

			testutil.On(t, l, func(ctx context.Context) {
				s := NewSession(l, root, testutil.Nodes(testutil.Lookup(root, "a")),
					WithHoverExpand(30*time.Millisecond, expand))
				s.Over(1, 2, 4)
				tt.act(s)
			})

			select {
			case n := <-expanded:
				t.Errorf("expanded %s after %s", n.DisplayName(), tt.name)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestSession_HoverIgnoresLeaves(t *testing.T) {
	l := testutil.StartLoop(t)
	root := hoverFixture()
	expanded := make(chan node.Node, 1)

	testutil.On(t, l, func(ctx context.Context) {
		s := NewSession(l, root, nil,
			WithHoverExpand(10*time.Millisecond, func(_ context.Context, n node.Node) { expanded <- n }))
		s.Over(0, 2, 4)
	})
	select {
	case n := <-expanded:
		t.Errorf("leaf %s expanded", n.DisplayName())
	case <-time.After(60 * time.Millisecond):
	}
}
