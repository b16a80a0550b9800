// Package visualizer implements the bridge between the node graph and the
// UI loop: an arena of proxies mirroring the materialized part of the graph
// under one root.
//
// Node events arrive on arbitrary goroutines. The bridge's listeners only
// enqueue a replay task on the UI loop; the proxy arena itself is read and
// written exclusively from tasks running on that loop. On replay the bridge
// re-reads the node's current children and diffs them against the cached
// proxies by node identity, so reorders keep proxy identity and stale events
// cost nothing but a lookup.
package visualizer

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/uithread"
)

// DefaultEvictionDelay is how long a collapsed subtree keeps its proxies.
const DefaultEvictionDelay = 15 * time.Second

// Common errors.
var (
	ErrNoRoot       = errors.New("bridge has no root")
	ErrNotUnderRoot = errors.New("node is not under the bridge root")
	ErrStale        = errors.New("node is no longer reachable")
	ErrUnknownProxy = errors.New("unknown proxy id")
	ErrClosed       = errors.New("bridge closed")
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithEvictionDelay sets how long collapsed subtrees keep their proxies.
// Zero evicts on collapse; a negative delay disables eviction.
func WithEvictionDelay(d time.Duration) Option {
	return func(b *Bridge) {
		b.evictionDelay = d
	}
}

type listener struct {
	id int
	fn func(StructureEvent)
}

// Bridge owns the proxy arena for one root context.
type Bridge struct {
	loop          *uithread.Loop
	evictionDelay time.Duration

	// Loop-confined state.
	root      ID
	proxies   map[ID]*Proxy
	byNode    map[node.Node]ID
	nextID    ID
	listeners []listener
	nextLis   int
	closed    bool

	// Guards the coalescing tables touched by node listeners.
	mu            sync.Mutex
	pendingResync map[node.Node]bool
	pendingProps  map[node.Node]map[string]bool
}

// New creates a bridge whose proxies live on loop.
func New(loop *uithread.Loop, opts ...Option) *Bridge {
	b := &Bridge{
		loop:          loop,
		evictionDelay: DefaultEvictionDelay,
		proxies:       make(map[ID]*Proxy),
		byNode:        make(map[node.Node]ID),
		pendingResync: make(map[node.Node]bool),
		pendingProps:  make(map[node.Node]map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Loop returns the UI loop the bridge is confined to.
func (b *Bridge) Loop() *uithread.Loop { return b.loop }

// EvictionDelay returns the configured collapse eviction delay.
func (b *Bridge) EvictionDelay() time.Duration { return b.evictionDelay }

// SetRoot discards every proxy and rebuilds the arena around n, which may be
// nil. Must run on the loop.
func (b *Bridge) SetRoot(n node.Node) ID {
	if b.closed {
		return NoID
	}
	b.reset()
	if n == nil {
		b.emit(StructureEvent{Kind: RootChanged, From: -1, To: -1})
		return NoID
	}
	p := b.create(n, NoID)
	p.expanded = true
	b.root = p.id
	debug.Log("visualizer: root set to %s", p)
	b.emit(StructureEvent{Kind: RootChanged, Parent: p.id, From: -1, To: -1})
	return p.id
}

// Root returns the root proxy id, or NoID.
func (b *Bridge) Root() ID { return b.root }

// RootNode returns the node at the root, or nil.
func (b *Bridge) RootNode() node.Node {
	if p, ok := b.proxies[b.root]; ok {
		return p.node
	}
	return nil
}

// Proxy resolves id.
func (b *Bridge) Proxy(id ID) (*Proxy, bool) {
	p, ok := b.proxies[id]
	return p, ok
}

// Lookup returns the existing proxy id for n without creating one.
func (b *Bridge) Lookup(n node.Node) (ID, bool) {
	if n == nil {
		return NoID, false
	}
	id, ok := b.byNode[n]
	return id, ok
}

// Len returns the number of live proxies.
func (b *Bridge) Len() int { return len(b.proxies) }

// ProxyFor returns the unique proxy for n, creating it and its ancestors'
// child lists as needed. Called off the loop, it marshals onto the loop and
// blocks until the proxy exists or ctx ends.
func (b *Bridge) ProxyFor(ctx context.Context, n node.Node) (*Proxy, error) {
	if b.loop.OnLoop(ctx) {
		return b.proxyFor(n)
	}
	var (
		p   *Proxy
		err error
	)
	if ierr := b.loop.Invoke(ctx, func(context.Context) {
		p, err = b.proxyFor(n)
	}); ierr != nil {
		return nil, ierr
	}
	return p, err
}

func (b *Bridge) proxyFor(n node.Node) (*Proxy, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if n == nil {
		return nil, ErrNotUnderRoot
	}
	if id, ok := b.byNode[n]; ok {
		return b.proxies[id], nil
	}
	rootProxy, ok := b.proxies[b.root]
	if !ok {
		return nil, ErrNoRoot
	}
	path := node.PathFromRoot(rootProxy.node, n)
	if path == nil {
		return nil, ErrNotUnderRoot
	}
	cur := rootProxy
	for _, step := range path[1:] {
		next, ok := b.childFor(cur, step)
		if !ok {
			return nil, ErrStale
		}
		cur = next
	}
	return cur, nil
}

// childFor finds the proxy of child under parent, re-reading parent's
// children once if the cached list predates child.
func (b *Bridge) childFor(parent *Proxy, child node.Node) (*Proxy, bool) {
	b.materialize(parent)
	if id, ok := b.byNode[child]; ok && b.proxies[id].parent == parent.id {
		return b.proxies[id], true
	}
	b.diff(parent)
	if id, ok := b.byNode[child]; ok && b.proxies[id].parent == parent.id {
		return b.proxies[id], true
	}
	return nil, false
}

// Children returns the child ids of id, reading them from the node on first
// use. The slice is a copy.
func (b *Bridge) Children(id ID) []ID {
	p, ok := b.proxies[id]
	if !ok {
		return nil
	}
	b.materialize(p)
	out := make([]ID, len(p.children))
	copy(out, p.children)
	return out
}

// ChildIndex returns the position of id among its parent's children, or -1.
func (b *Bridge) ChildIndex(id ID) int {
	p, ok := b.proxies[id]
	if !ok {
		return -1
	}
	parent, ok := b.proxies[p.parent]
	if !ok {
		return -1
	}
	for i, c := range parent.children {
		if c == id {
			return i
		}
	}
	return -1
}

// Path returns the ids from the root down to id inclusive, or nil.
func (b *Bridge) Path(id ID) []ID {
	var rev []ID
	for cur := id; cur != NoID; {
		p, ok := b.proxies[cur]
		if !ok {
			return nil
		}
		rev = append(rev, cur)
		cur = p.parent
	}
	out := make([]ID, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// Depth returns how many levels id sits below the root, or -1.
func (b *Bridge) Depth(id ID) int {
	return len(b.Path(id)) - 1
}

// NamePath returns the display names below the root leading to id. The root
// itself is not included.
func (b *Bridge) NamePath(id ID) []string {
	path := b.Path(id)
	if len(path) == 0 {
		return nil
	}
	names := make([]string, 0, len(path)-1)
	for _, pid := range path[1:] {
		names = append(names, b.proxies[pid].name)
	}
	return names
}

// Find resolves a NamePath back to a proxy, materializing along the way.
func (b *Bridge) Find(names []string) (ID, bool) {
	cur, ok := b.proxies[b.root]
	if !ok {
		return NoID, false
	}
	for _, name := range names {
		var next *Proxy
		for _, cid := range b.Children(cur.id) {
			if c := b.proxies[cid]; c.name == name {
				next = c
				break
			}
		}
		if next == nil {
			return NoID, false
		}
		cur = next
	}
	return cur.id, true
}

// Expand marks id expanded, materializes its children and cancels any
// pending eviction.
func (b *Bridge) Expand(id ID) error {
	p, ok := b.proxies[id]
	if !ok {
		return ErrUnknownProxy
	}
	if p.evict != nil {
		if p.evict.Stop() {
			metrics.EvictionsCancelled.Inc()
		}
		p.evict = nil
	}
	if p.leaf {
		return nil
	}
	p.expanded = true
	b.materialize(p)
	return nil
}

// Collapse marks id collapsed and schedules its descendants for eviction.
func (b *Bridge) Collapse(id ID) error {
	p, ok := b.proxies[id]
	if !ok {
		return ErrUnknownProxy
	}
	p.expanded = false
	if !p.materialized || len(p.children) == 0 || b.evictionDelay < 0 {
		return nil
	}
	if b.evictionDelay == 0 {
		b.evictChildren(p)
		return nil
	}
	b.scheduleEviction(p)
	return nil
}

// scheduleEviction drops p's children once the eviction delay has passed,
// unless p has been expanded by then. Expand cancels the timer.
func (b *Bridge) scheduleEviction(p *Proxy) {
	if p.evict != nil || b.evictionDelay < 0 {
		return
	}
	id := p.id
	p.evict = b.loop.AfterFunc(b.evictionDelay, func(context.Context) {
		cur, ok := b.proxies[id]
		if !ok || cur != p {
			return
		}
		p.evict = nil
		if !p.expanded {
			b.evictChildren(p)
		}
	})
}

// IsExpanded reports whether id is expanded.
func (b *Bridge) IsExpanded(id ID) bool {
	p, ok := b.proxies[id]
	return ok && p.expanded
}

// Listen registers fn for structure events. The returned function removes it.
func (b *Bridge) Listen(fn func(StructureEvent)) func() {
	b.nextLis++
	id := b.nextLis
	b.listeners = append(b.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Flush waits until every node event queued before the call has been
// replayed.
func (b *Bridge) Flush(ctx context.Context) error {
	return b.loop.Invoke(ctx, func(context.Context) {})
}

// Close drops every proxy and node subscription. Queued replays become
// no-ops. Must run on the loop.
func (b *Bridge) Close() {
	if b.closed {
		return
	}
	b.reset()
	b.closed = true
	b.listeners = nil
}

func (b *Bridge) reset() {
	if n := len(b.proxies); n > 0 {
		metrics.Evictions.Add(int64(n))
	}
	for _, p := range b.proxies {
		b.release(p)
	}
	b.proxies = make(map[ID]*Proxy)
	b.byNode = make(map[node.Node]ID)
	b.root = NoID
}

func (b *Bridge) create(n node.Node, parent ID) *Proxy {
	defer metrics.Timer(metrics.ProxyCreate)()
	b.nextID++
	p := &Proxy{id: b.nextID, node: n, parent: parent}
	p.refresh()
	b.proxies[p.id] = p
	b.byNode[n] = p.id
	p.unsubscribe = b.subscribe(n)
	return p
}

// adopt returns a fresh proxy for n under parent. A proxy left over for n
// under a different parent (the node moved) is removed first, keeping one
// proxy per node.
func (b *Bridge) adopt(n node.Node, parent ID) *Proxy {
	if old, ok := b.byNode[n]; ok {
		if op := b.proxies[old]; op.parent != parent {
			b.detach(op)
		}
	}
	return b.create(n, parent)
}

// detach removes p from its parent's child list, announces it, and evicts
// its subtree.
func (b *Bridge) detach(p *Proxy) {
	if parent, ok := b.proxies[p.parent]; ok {
		for i, c := range parent.children {
			if c == p.id {
				parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
				b.emit(StructureEvent{Kind: Removed, Parent: parent.id, From: i, To: i, Indices: []int{i}, IDs: []ID{p.id}})
				break
			}
		}
	}
	b.evictSubtree(p.id, nil)
}

// materialize reads p's children into the arena. Children read for a
// collapsed folder, by a lookup or a hypothetical expansion, get the same
// eviction timer as a collapse.
func (b *Bridge) materialize(p *Proxy) {
	if p.materialized {
		return
	}
	p.materialized = true
	if p.leaf {
		return
	}
	if !p.expanded && p.id != b.root {
		b.scheduleEviction(p)
	}
	kids := safeChildren(p.node)
	p.children = make([]ID, 0, len(kids))
	for _, k := range kids {
		if k == nil {
			continue
		}
		p.children = append(p.children, b.adopt(k, p.id).id)
	}
}

func (b *Bridge) evictChildren(p *Proxy) {
	var dropped []ID
	for _, c := range p.children {
		b.evictSubtree(c, &dropped)
	}
	p.children = nil
	p.materialized = false
	if len(dropped) > 0 {
		debug.Log("visualizer: evicted %d proxies under %s", len(dropped), p)
		b.emit(StructureEvent{Kind: Evicted, Parent: p.id, From: -1, To: -1, IDs: dropped})
	}
}

func (b *Bridge) evictSubtree(id ID, dropped *[]ID) {
	p, ok := b.proxies[id]
	if !ok {
		return
	}
	for _, c := range p.children {
		b.evictSubtree(c, dropped)
	}
	b.release(p)
	delete(b.proxies, id)
	if b.byNode[p.node] == id {
		delete(b.byNode, p.node)
	}
	metrics.Evictions.Inc()
	if dropped != nil {
		*dropped = append(*dropped, id)
	}
}

func (b *Bridge) release(p *Proxy) {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.evict != nil {
		p.evict.Stop()
		p.evict = nil
	}
}

func (b *Bridge) emit(ev StructureEvent) {
	for _, l := range append([]listener(nil), b.listeners...) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.CollaboratorPanics.Inc()
					log.Printf("warning: structure listener panicked on %s: %v", ev.Kind, r)
				}
			}()
			l.fn(ev)
		}()
	}
}

func joinProps(props map[string]bool) string {
	names := make([]string, 0, len(props))
	for p := range props {
		names = append(names, p)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
