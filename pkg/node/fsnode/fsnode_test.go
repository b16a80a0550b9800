package fsnode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/nodeview/internal/orderstore"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/testutil"
	"github.com/vanderheijden86/nodeview/pkg/watcher"
)

const layout = `
proj/
  src/
    main.go
    util.go
  docs/
    guide.md
  README
  .git/
    HEAD
`

func open(t *testing.T, dir string, opts ...Option) *FS {
	t.Helper()
	f, err := Open(dir, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func assertNames(t *testing.T, n node.Node, want ...string) {
	t.Helper()
	testutil.AssertNodeNames(t, n.Children(), want...)
}

// recorder collects events from one node.
type recorder struct {
	mu     sync.Mutex
	events []node.Event
}

func (r *recorder) add(ev node.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []node.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]node.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestOpen_LazyChildren(t *testing.T) {
	f := open(t, testutil.TempTree(t, layout))
	root := f.Root()
	if root.Loaded() {
		t.Fatal("root should not be read before Children")
	}
	assertNames(t, root, "README", "docs", "src")
	if !root.Loaded() {
		t.Error("Children should read the directory")
	}

	src := f.Lookup(filepath.Join(root.Path(), "src"))
	if src == nil || src.IsLeaf() || src.Loaded() {
		t.Fatalf("src=%v", src)
	}
	assertNames(t, src, "main.go", "util.go")
	if readme := f.Lookup(filepath.Join(root.Path(), "README")); readme == nil || !readme.IsLeaf() {
		t.Error("README should be a leaf")
	}
	if src.Parent() != node.Node(root) {
		t.Error("parent link broken")
	}
}

func TestOpen_Hidden(t *testing.T) {
	f := open(t, testutil.TempTree(t, layout), WithHidden(true))
	assertNames(t, f.Root(), ".git", "README", "docs", "src")
}

func TestOpen_NotDirectory(t *testing.T) {
	dir := testutil.TempTree(t, layout)
	_, err := Open(filepath.Join(dir, "README"))
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("err=%v, want ErrNotDirectory", err)
	}
}

func TestRefresh_EmitsStructuralEvents(t *testing.T) {
	dir := testutil.TempTree(t, layout)
	f := open(t, dir)
	root := f.Root()
	_ = root.Children()

	var rec recorder
	root.Subscribe(rec.add)
	docs := f.Lookup(filepath.Join(dir, "docs"))
	var docsRec recorder
	docs.Subscribe(docsRec.add)

	if err := os.WriteFile(filepath.Join(dir, "CHANGELOG"), []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(dir, "docs")); err != nil {
		t.Fatal(err)
	}
	if err := f.Refresh(root); err != nil {
		t.Fatal(err)
	}

	assertNames(t, root, "CHANGELOG", "README", "src")
	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != node.ChildrenRemoved || kinds[1] != node.ChildrenAdded {
		t.Errorf("root events=%v", kinds)
	}
	if k := docsRec.kinds(); len(k) != 1 || k[0] != node.NodeDestroyed {
		t.Errorf("docs events=%v", k)
	}
	if f.Lookup(filepath.Join(dir, "docs")) != nil {
		t.Error("removed entry should leave the index")
	}
}

func TestRefresh_DescriptionChange(t *testing.T) {
	dir := testutil.TempTree(t, layout)
	f := open(t, dir)
	_ = f.Root().Children()
	readme := f.Lookup(filepath.Join(dir, "README"))
	if got := readme.ShortDescription(); got != "0 B" {
		t.Errorf("description=%q", got)
	}

	var rec recorder
	readme.Subscribe(rec.add)
	if err := os.WriteFile(filepath.Join(dir, "README"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.Refresh(f.Root()); err != nil {
		t.Fatal(err)
	}
	if got := readme.ShortDescription(); got != "2.0 KiB" {
		t.Errorf("description=%q", got)
	}
	if k := rec.kinds(); len(k) != 1 || k[0] != node.PropertyChanged {
		t.Errorf("events=%v", k)
	}
}

func TestReorder_PersistsInStore(t *testing.T) {
	ctx := context.Background()
	dir := testutil.TempTree(t, layout)
	store, err := orderstore.Open(filepath.Join(t.TempDir(), "order.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	f := open(t, dir, WithOrderStore(store))
	idx, ok := node.ReorderableOf(f.Root())
	if !ok {
		t.Fatal("directories should be reorderable")
	}
	var rec recorder
	f.Root().Subscribe(rec.add)

	// [README docs src] -> [src README docs]
	if err := idx.Reorder([]int{1, 2, 0}); err != nil {
		t.Fatal(err)
	}
	assertNames(t, f.Root(), "src", "README", "docs")
	if k := rec.kinds(); len(k) != 1 || k[0] != node.ChildrenReordered {
		t.Errorf("events=%v", k)
	}
	stored, err := store.Order(ctx, f.Root().Path())
	if err != nil || len(stored) != 3 || stored[0] != "src" {
		t.Errorf("stored=%v err=%v", stored, err)
	}

	// A fresh graph over the same store sees the custom order, and new
	// entries append by name.
	if err := os.WriteFile(filepath.Join(dir, "AUTHORS"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	again := open(t, dir, WithOrderStore(store))
	assertNames(t, again.Root(), "src", "README", "docs", "AUTHORS")

	if _, ok := node.ReorderableOf(again.Lookup(filepath.Join(dir, "README"))); ok {
		t.Error("files must not be reorderable")
	}
	if err := idx.Reorder([]int{0, 0, 1}); !errors.Is(err, node.ErrBadPermutation) {
		t.Errorf("bad permutation: %v", err)
	}
}

func TestPreload(t *testing.T) {
	dir := testutil.TempTree(t, layout)
	f := open(t, dir)
	_ = f.Root().Children()

	src := f.Lookup(filepath.Join(dir, "src"))
	docs := f.Lookup(filepath.Join(dir, "docs"))
	readme := f.Lookup(filepath.Join(dir, "README"))
	if err := f.Preload(context.Background(), []*Entry{src, docs, readme, nil}, 2); err != nil {
		t.Fatal(err)
	}
	if !src.Loaded() || !docs.Loaded() {
		t.Error("directories should be loaded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	other := open(t, dir)
	if err := other.Preload(ctx, []*Entry{other.Root()}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled preload: %v", err)
	}
}

func TestWatch_PicksUpNewFiles(t *testing.T) {
	dir := testutil.TempTree(t, layout)
	f := open(t, dir, WithWatch(
		watcher.WithDebounceDuration(20*time.Millisecond),
		watcher.WithPollInterval(50*time.Millisecond),
	))
	_ = f.Root().Children()
	sub := f.Lookup(filepath.Join(dir, "src"))
	_ = sub.Children()
	if !f.Watcher().IsWatching(filepath.Join(dir, "src")) {
		t.Fatal("loaded directories should be watched")
	}

	added := make(chan node.Event, 4)
	sub.Subscribe(func(ev node.Event) {
		if ev.Kind == node.ChildrenAdded {
			added <- ev
		}
	})
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "src", "extra.go"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-added:
		if len(ev.Nodes) != 1 || ev.Nodes[0].DisplayName() != "extra.go" {
			t.Errorf("added %v", testutil.NodeNames(ev.Nodes))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report the new file")
	}
	assertNames(t, sub, "extra.go", "main.go", "util.go")
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
		3 << 30:         "3.0 GiB",
	}
	for in, want := range tests {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d)=%q, want %q", in, got, want)
		}
	}
}
