package node

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func collect(n Node) (*[]Event, *sync.Mutex) {
	var (
		mu     sync.Mutex
		events []Event
	)
	n.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	return &events, &mu
}

func TestMem_AddRemoveEvents(t *testing.T) {
	root := NewMem("root")
	events, _ := collect(root)

	a := root.NewChild("a")
	b := root.NewChild("b")
	root.Remove(a)

	if got := root.Names(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("Names=%v, want [b]", got)
	}
	if len(*events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(*events))
	}
	if ev := (*events)[1]; ev.Kind != ChildrenAdded || ev.Indices[0] != 1 || ev.Nodes[0] != Node(b) {
		t.Errorf("unexpected add event: %+v", ev)
	}
	if ev := (*events)[2]; ev.Kind != ChildrenRemoved || ev.Indices[0] != 0 || ev.Nodes[0] != Node(a) {
		t.Errorf("unexpected remove event: %+v", ev)
	}
	if a.Parent() != nil {
		t.Error("removed child should have no parent")
	}
}

func TestMem_ParentOfRootIsUntypedNil(t *testing.T) {
	root := NewMem("root")
	if p := root.Parent(); p != nil {
		t.Errorf("Parent()=%#v, want nil interface", p)
	}
}

func TestMem_Reorder(t *testing.T) {
	root := NewMem("root", WithReorder())
	for _, n := range []string{"A", "B", "C"} {
		root.NewChild(n)
	}
	events, _ := collect(root)

	r, ok := ReorderableOf(root)
	if !ok {
		t.Fatal("expected reorderable capability")
	}
	// A->2, B->0, C->1 gives [B C A]
	if err := r.Reorder([]int{2, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if got := root.Names(); !reflect.DeepEqual(got, []string{"B", "C", "A"}) {
		t.Errorf("Names=%v", got)
	}
	if len(*events) != 1 || (*events)[0].Kind != ChildrenReordered {
		t.Fatalf("events=%+v", *events)
	}

	if err := r.Reorder([]int{0, 0, 1}); !errors.Is(err, ErrBadPermutation) {
		t.Errorf("expected ErrBadPermutation, got %v", err)
	}
	if err := r.Reorder([]int{0, 1, 2}); err != nil {
		t.Errorf("identity reorder: %v", err)
	}
	if len(*events) != 1 {
		t.Errorf("identity reorder must not fire, got %d events", len(*events))
	}
}

func TestMem_NoCapabilityWithoutOption(t *testing.T) {
	root := NewMem("root")
	if _, ok := ReorderableOf(root); ok {
		t.Error("plain Mem should not expose Reorderable")
	}
}

func TestMem_PropertyEvents(t *testing.T) {
	n := NewMem("x")
	events, _ := collect(n)
	n.SetName("y")
	n.SetName("y")
	n.SetDescription("desc")

	if len(*events) != 2 {
		t.Fatalf("expected 2 property events, got %d", len(*events))
	}
	if (*events)[0].Property != PropDisplayName || (*events)[1].Property != PropShortDescription {
		t.Errorf("unexpected properties: %+v", *events)
	}
}

func TestGraph_ListenerMayWrite(t *testing.T) {
	root := NewMem("root")
	var order []string
	root.Subscribe(func(ev Event) {
		if ev.Kind == ChildrenAdded && ev.Nodes[0].DisplayName() == "a" {
			root.NewChild("b")
		}
		order = append(order, ev.Nodes[0].DisplayName())
	})
	root.NewChild("a")
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("order=%v, want [a b]", order)
	}
}

func TestGraph_ListenerPanicIsAbsorbed(t *testing.T) {
	root := NewMem("root")
	root.Subscribe(func(Event) { panic("boom") })
	called := false
	root.Subscribe(func(Event) { called = true })
	root.NewChild("a")
	if !called {
		t.Error("second listener should still run after the first panicked")
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	root := NewMem("root")
	count := 0
	cancel := root.Subscribe(func(Event) { count++ })
	root.NewChild("a")
	cancel()
	cancel()
	root.NewChild("b")
	if count != 1 {
		t.Errorf("count=%d, want 1", count)
	}
	if root.Subscribers() != 0 {
		t.Errorf("Subscribers=%d", root.Subscribers())
	}
}

func TestPathHelpers(t *testing.T) {
	root := NewMem("root")
	a := root.NewChild("a")
	b := a.NewChild("b")
	other := NewMem("other")

	path := PathFromRoot(root, b)
	if len(path) != 3 || path[0] != Node(root) || path[2] != Node(b) {
		t.Errorf("PathFromRoot=%v", path)
	}
	if PathFromRoot(a, other) != nil {
		t.Error("expected nil path for foreign node")
	}
	if !IsUnder(root, b) || IsUnder(b, root) {
		t.Error("IsUnder wrong")
	}
	if !IsAncestor(root, b) || IsAncestor(b, b) {
		t.Error("IsAncestor wrong")
	}
	if IndexIn(root, a) != 0 || IndexIn(root, b) != -1 {
		t.Error("IndexIn wrong")
	}
}

func TestMem_AddRebindsGraph(t *testing.T) {
	root := NewMem("root")
	sub := NewMem("sub")
	leaf := sub.NewChild("leaf")
	root.Add(sub)
	if sub.Graph() != root.Graph() || leaf.Graph() != root.Graph() {
		t.Error("subtree should share the parent's graph after Add")
	}
}

func TestPermutationHelpers(t *testing.T) {
	items := []string{"A", "B", "C", "D"}
	perm := []int{1, 3, 0, 2}
	got := ApplyPermutation(items, perm)
	if !reflect.DeepEqual(got, []string{"C", "A", "D", "B"}) {
		t.Errorf("ApplyPermutation=%v", got)
	}
	inv := InvertPermutation(perm)
	if back := ApplyPermutation(got, inv); !reflect.DeepEqual(back, items) {
		t.Errorf("inverse did not restore: %v", back)
	}
	if !IsIdentity([]int{0, 1, 2}) || IsIdentity(perm) {
		t.Error("IsIdentity wrong")
	}
}
