// Package fsnode exposes a directory tree as a node graph. Directories are
// folders whose entries are read lazily; files are leaves. A watched tree
// re-reads directories when they change on disk and emits the matching
// structural events. Folders are reorderable, and a custom order survives
// restarts when an order store is attached.
package fsnode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/nodeview/internal/orderstore"
	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/watcher"
)

// ErrNotDirectory is returned when the root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Option configures an FS.
type Option func(*FS)

// WithOrderStore persists custom sibling order in s.
func WithOrderStore(s *orderstore.Store) Option {
	return func(f *FS) { f.store = s }
}

// WithWatch watches every loaded directory, passing opts to the watcher.
func WithWatch(opts ...watcher.WatcherOption) Option {
	return func(f *FS) {
		f.watch = true
		f.watchOpts = opts
	}
}

// WithHidden includes dot files.
func WithHidden(show bool) Option {
	return func(f *FS) { f.showHidden = show }
}

// FS is a filesystem-backed node graph.
type FS struct {
	g    *node.Graph
	root *Entry

	// index maps absolute paths of live entries; guarded by g.
	index map[string]*Entry

	store      *orderstore.Store
	showHidden bool
	watch      bool
	watchOpts  []watcher.WatcherOption
	w          *watcher.Watcher
}

// Open builds the graph rooted at dir. Nothing below the root is read until
// a directory's children are requested.
func Open(dir string, opts ...Option) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	}

	f := &FS{g: node.NewGraph(), index: make(map[string]*Entry)}
	for _, opt := range opts {
		opt(f)
	}
	f.root = f.newEntry(nil, abs, info)
	f.index[abs] = f.root

	if f.watch {
		wopts := append([]watcher.WatcherOption{}, f.watchOpts...)
		wopts = append(wopts,
			watcher.WithOnChange(f.dirChanged),
			watcher.WithOnRemoved(f.dirRemoved),
			watcher.WithOnError(func(err error) {
				log.Printf("warning: watching %s: %v", abs, err)
			}),
		)
		w, err := watcher.NewWatcher(abs, wopts...)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			return nil, fmt.Errorf("starting watcher: %w", err)
		}
		f.w = w
	}
	return f, nil
}

// Root returns the root directory entry.
func (f *FS) Root() *Entry { return f.root }

// Graph returns the lock shared by every entry.
func (f *FS) Graph() *node.Graph { return f.g }

// Watcher returns the directory watcher, or nil when not watching.
func (f *FS) Watcher() *watcher.Watcher { return f.w }

// Close stops watching. The order store belongs to the caller.
func (f *FS) Close() error {
	if f.w != nil {
		f.w.Stop()
	}
	return nil
}

// Lookup returns the loaded entry at path, or nil.
func (f *FS) Lookup(path string) *Entry {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	var e *Entry
	f.g.ReadAccess(func() { e = f.index[abs] })
	return e
}

// Preload reads the given directories concurrently, at most limit at a
// time. Directories already read are skipped.
func (f *FS) Preload(ctx context.Context, dirs []*Entry, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, d := range dirs {
		if d == nil || !d.dir {
			continue
		}
		d := d
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return d.load()
		})
	}
	return g.Wait()
}

// Refresh re-reads dir and emits events for what changed since the last
// read. Unread directories are left alone.
func (f *FS) Refresh(dir *Entry) error {
	if dir == nil || !dir.dir {
		return nil
	}
	var loaded bool
	f.g.ReadAccess(func() { loaded = dir.loaded && !dir.destroyed })
	if !loaded {
		return nil
	}

	infos, err := f.scan(dir.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.dirRemoved(dir.path)
			return nil
		}
		return err
	}

	var unwatched []string
	f.g.WriteAccess(func() {
		if dir.destroyed {
			return
		}
		unwatched = f.apply(dir, infos)
	})
	if f.w != nil {
		for _, p := range unwatched {
			f.w.Remove(p)
		}
	}
	return nil
}

func (f *FS) dirChanged(path string) {
	if e := f.Lookup(path); e != nil {
		if err := f.Refresh(e); err != nil {
			log.Printf("warning: refreshing %s: %v", path, err)
		}
	}
}

func (f *FS) dirRemoved(path string) {
	e := f.Lookup(path)
	if e == nil {
		return
	}
	if e == f.root {
		var removed []string
		f.g.WriteAccess(func() {
			removed = f.destroyLocked(e)
		})
		if f.w != nil {
			for _, p := range removed {
				f.w.Remove(p)
			}
		}
		return
	}
	var parent *Entry
	f.g.ReadAccess(func() { parent = e.parent })
	if err := f.Refresh(parent); err != nil {
		log.Printf("warning: refreshing %s: %v", parent.path, err)
	}
}

// entryInfo is one scanned directory entry.
type entryInfo struct {
	name string
	info os.FileInfo
}

// scan reads dir from disk and returns its entries in display order.
func (f *FS) scan(dir string) ([]entryInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]os.FileInfo, len(entries))
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		name := de.Name()
		if !f.showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Vanished between ReadDir and Info.
			continue
		}
		byName[name] = info
		names = append(names, name)
	}

	var stored []string
	if f.store != nil {
		stored, err = f.store.Order(context.Background(), dir)
		if err != nil {
			log.Printf("warning: reading custom order of %s: %v", dir, err)
		}
	}
	names = orderstore.Arrange(names, stored)

	out := make([]entryInfo, len(names))
	for i, n := range names {
		out[i] = entryInfo{name: n, info: byName[n]}
	}
	return out, nil
}

func (f *FS) newEntry(parent *Entry, path string, info os.FileInfo) *Entry {
	e := &Entry{
		fs:     f,
		path:   path,
		name:   filepath.Base(path),
		parent: parent,
	}
	if info != nil {
		e.dir = info.IsDir()
		e.size = info.Size()
		e.modTime = info.ModTime()
	}
	return e
}

// apply diffs dir's children against infos and posts the events that turn
// the old list into the new one: removals, then a reorder of the
// survivors, then insertions, then description changes. Caller holds write
// access. It returns the directories that left the tree.
func (f *FS) apply(dir *Entry, infos []entryInfo) (unwatched []string) {
	want := make(map[string]entryInfo, len(infos))
	for _, in := range infos {
		want[in.name] = in
	}

	old := dir.children
	var (
		survivors []*Entry
		remIdx    []int
		remNodes  []node.Node
		removed   []*Entry
	)
	for i, c := range old {
		in, ok := want[c.name]
		if ok && in.info.IsDir() == c.dir {
			survivors = append(survivors, c)
			continue
		}
		remIdx = append(remIdx, i)
		remNodes = append(remNodes, c)
		removed = append(removed, c)
	}
	if len(remIdx) > 0 {
		dir.children = survivors
		f.g.Post(&dir.emitter, node.Event{Kind: node.ChildrenRemoved, Source: dir, Indices: remIdx, Nodes: remNodes})
		for _, c := range removed {
			unwatched = append(unwatched, f.destroyLocked(c)...)
		}
	}

	// Survivors in their new relative order.
	pos := make(map[*Entry]int, len(survivors))
	k := 0
	byName := make(map[string]*Entry, len(survivors))
	for _, c := range survivors {
		byName[c.name] = c
	}
	for _, in := range infos {
		if c, ok := byName[in.name]; ok {
			pos[c] = k
			k++
		}
	}
	perm := make([]int, len(survivors))
	for i, c := range survivors {
		perm[i] = pos[c]
	}
	if !node.IsIdentity(perm) {
		dir.children = node.ApplyPermutation(survivors, perm)
		f.g.Post(&dir.emitter, node.Event{Kind: node.ChildrenReordered, Source: dir, Perm: perm})
	}

	final := make([]*Entry, 0, len(infos))
	var addIdx []int
	var addNodes []node.Node
	var changed []*Entry
	for i, in := range infos {
		if c, ok := byName[in.name]; ok {
			if c.size != in.info.Size() || !c.modTime.Equal(in.info.ModTime()) {
				c.size, c.modTime = in.info.Size(), in.info.ModTime()
				changed = append(changed, c)
			}
			final = append(final, c)
			continue
		}
		c := f.newEntry(dir, filepath.Join(dir.path, in.name), in.info)
		f.index[c.path] = c
		final = append(final, c)
		addIdx = append(addIdx, i)
		addNodes = append(addNodes, c)
	}
	dir.children = final
	if len(addIdx) > 0 {
		f.g.Post(&dir.emitter, node.Event{Kind: node.ChildrenAdded, Source: dir, Indices: addIdx, Nodes: addNodes})
	}
	for _, c := range changed {
		f.g.Post(&c.emitter, node.Event{Kind: node.PropertyChanged, Source: c, Property: node.PropShortDescription})
	}
	if len(remIdx)+len(addIdx)+len(changed) > 0 || !node.IsIdentity(perm) {
		debug.Log("fsnode: %s -%d +%d ~%d", dir.path, len(remIdx), len(addIdx), len(changed))
	}
	return unwatched
}

// destroyLocked marks e and its loaded descendants destroyed, drops them
// from the index and notifies e's subscribers. It returns the directories
// that were loaded, for unwatching.
func (f *FS) destroyLocked(e *Entry) []string {
	var dirs []string
	var walk func(*Entry)
	walk = func(x *Entry) {
		x.destroyed = true
		delete(f.index, x.path)
		if x.dir && x.loaded {
			dirs = append(dirs, x.path)
		}
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(e)
	f.g.Post(&e.emitter, node.Event{Kind: node.NodeDestroyed, Source: e})
	return dirs
}

// Entry is a file or directory in an FS.
type Entry struct {
	fs   *FS
	path string
	name string
	dir  bool

	// Guarded by fs.g.
	parent    *Entry
	size      int64
	modTime   time.Time
	loaded    bool
	destroyed bool
	children  []*Entry

	emitter node.Emitter
}

// Path returns the absolute path.
func (e *Entry) Path() string { return e.path }

// IsDir reports whether e is a directory.
func (e *Entry) IsDir() bool { return e.dir }

// Size returns the size recorded at the last read.
func (e *Entry) Size() int64 {
	var s int64
	e.fs.g.ReadAccess(func() { s = e.size })
	return s
}

// ModTime returns the modification time recorded at the last read.
func (e *Entry) ModTime() time.Time {
	var t time.Time
	e.fs.g.ReadAccess(func() { t = e.modTime })
	return t
}

// Loaded reports whether a directory's entries have been read.
func (e *Entry) Loaded() bool {
	var l bool
	e.fs.g.ReadAccess(func() { l = e.loaded })
	return l
}

// Children implements node.Node. The first call reads the directory.
func (e *Entry) Children() []node.Node {
	if !e.dir {
		return nil
	}
	if err := e.load(); err != nil {
		log.Printf("warning: reading %s: %v", e.path, err)
	}
	var out []node.Node
	e.fs.g.ReadAccess(func() {
		out = make([]node.Node, len(e.children))
		for i, c := range e.children {
			out[i] = c
		}
	})
	return out
}

// load reads the directory once and starts watching it.
func (e *Entry) load() error {
	var loaded bool
	e.fs.g.ReadAccess(func() { loaded = e.loaded || e.destroyed })
	if loaded {
		return nil
	}

	infos, err := e.fs.scan(e.path)
	if err != nil {
		return err
	}
	installed := false
	e.fs.g.WriteAccess(func() {
		if e.loaded || e.destroyed {
			return
		}
		e.children = make([]*Entry, len(infos))
		for i, in := range infos {
			c := e.fs.newEntry(e, filepath.Join(e.path, in.name), in.info)
			e.fs.index[c.path] = c
			e.children[i] = c
		}
		e.loaded = true
		installed = true
	})
	if installed && e.fs.w != nil {
		if err := e.fs.w.Add(e.path); err != nil {
			debug.Log("fsnode: not watching %s: %v", e.path, err)
		}
	}
	return nil
}

// Parent implements node.Node.
func (e *Entry) Parent() node.Node {
	var p *Entry
	e.fs.g.ReadAccess(func() { p = e.parent })
	if p == nil {
		return nil
	}
	return p
}

// IsLeaf implements node.Node: files are leaves, directories never are.
func (e *Entry) IsLeaf() bool { return !e.dir }

// DisplayName implements node.Node.
func (e *Entry) DisplayName() string { return e.name }

// ShortDescription implements node.Node.
func (e *Entry) ShortDescription() string {
	if e.dir {
		return "dir"
	}
	return FormatSize(e.Size())
}

// Subscribe implements node.Node.
func (e *Entry) Subscribe(fn func(node.Event)) func() {
	return e.emitter.Subscribe(fn)
}

// Reorderable implements node.ReorderProvider for directories.
func (e *Entry) Reorderable() node.Reorderable {
	if !e.dir {
		return nil
	}
	return dirIndex{e}
}

func (e *Entry) String() string { return e.path }

// dirIndex reorders a directory's entries and remembers the order.
type dirIndex struct{ e *Entry }

func (x dirIndex) Count() int {
	return len(x.e.Children())
}

func (x dirIndex) IndexOf(child node.Node) int {
	c, ok := child.(*Entry)
	if !ok {
		return -1
	}
	_ = x.e.load()
	idx := -1
	x.e.fs.g.ReadAccess(func() {
		for i, cc := range x.e.children {
			if cc == c {
				idx = i
				return
			}
		}
	})
	return idx
}

// Reorder applies perm and stores the resulting order. A failure to store
// is logged; the new order still holds for this session.
func (x dirIndex) Reorder(perm []int) error {
	e := x.e
	if err := e.load(); err != nil {
		return err
	}
	var (
		err   error
		names []string
	)
	e.fs.g.WriteAccess(func() {
		if e.destroyed {
			err = node.ErrDestroyed
			return
		}
		if err = node.ValidatePermutation(perm, len(e.children)); err != nil {
			return
		}
		if node.IsIdentity(perm) {
			return
		}
		e.children = node.ApplyPermutation(e.children, perm)
		p := append([]int(nil), perm...)
		e.fs.g.Post(&e.emitter, node.Event{Kind: node.ChildrenReordered, Source: e, Perm: p})
		names = make([]string, len(e.children))
		for i, c := range e.children {
			names[i] = c.name
		}
	})
	if err != nil || names == nil || e.fs.store == nil {
		return err
	}
	if serr := e.fs.store.SetOrder(context.Background(), e.path, names); serr != nil {
		log.Printf("warning: saving custom order of %s: %v", e.path, serr)
	}
	return nil
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
