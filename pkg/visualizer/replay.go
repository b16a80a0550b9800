package visualizer

import (
	"context"

	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
)

// subscribe attaches the arbitrary-goroutine listener for n. The listener
// never touches the arena; it only schedules replay tasks.
func (b *Bridge) subscribe(n node.Node) (cancel func()) {
	defer func() {
		if r := recover(); r != nil {
			collaboratorPanic("Subscribe", r)
			cancel = nil
		}
	}()
	return n.Subscribe(func(ev node.Event) {
		switch ev.Kind {
		case node.ChildrenAdded, node.ChildrenRemoved, node.ChildrenReordered:
			b.queueResync(n)
		case node.PropertyChanged:
			b.queueProperty(n, ev.Property)
		case node.NodeDestroyed:
			b.queueDestroyed(n)
		}
	})
}

// queueResync schedules a children resync for n. While one is already
// queued, further structural events for n fold into it: the replay reads
// the children as they are when it runs, which covers every folded event.
func (b *Bridge) queueResync(n node.Node) {
	b.mu.Lock()
	if b.pendingResync[n] {
		b.mu.Unlock()
		metrics.EventsCoalesced.Inc()
		return
	}
	b.pendingResync[n] = true
	b.mu.Unlock()
	metrics.EventsQueued.Inc()

	err := b.loop.Post(func(context.Context) {
		b.mu.Lock()
		delete(b.pendingResync, n)
		b.mu.Unlock()
		b.resync(n)
	})
	if err != nil {
		b.mu.Lock()
		delete(b.pendingResync, n)
		b.mu.Unlock()
	}
}

func (b *Bridge) queueProperty(n node.Node, prop string) {
	b.mu.Lock()
	if props, ok := b.pendingProps[n]; ok {
		props[prop] = true
		b.mu.Unlock()
		metrics.EventsCoalesced.Inc()
		return
	}
	b.pendingProps[n] = map[string]bool{prop: true}
	b.mu.Unlock()
	metrics.EventsQueued.Inc()

	err := b.loop.Post(func(context.Context) {
		b.mu.Lock()
		props := b.pendingProps[n]
		delete(b.pendingProps, n)
		b.mu.Unlock()
		b.refreshProps(n, props)
	})
	if err != nil {
		b.mu.Lock()
		delete(b.pendingProps, n)
		b.mu.Unlock()
	}
}

func (b *Bridge) queueDestroyed(n node.Node) {
	metrics.EventsQueued.Inc()
	_ = b.loop.Post(func(context.Context) {
		b.destroyed(n)
	})
}

// live resolves n to a proxy still reachable from the root. Anything else
// is a stale replay and is dropped.
func (b *Bridge) live(n node.Node, what string) (*Proxy, bool) {
	if b.closed {
		return nil, false
	}
	id, ok := b.byNode[n]
	if !ok {
		metrics.EventsStale.Inc()
		debug.Log("visualizer: dropping stale %s for unmapped node", what)
		return nil, false
	}
	p := b.proxies[id]
	if id != b.root && !node.IsUnder(b.RootNode(), n) {
		metrics.EventsStale.Inc()
		debug.Log("visualizer: dropping stale %s for %s", what, p)
		return nil, false
	}
	return p, true
}

func (b *Bridge) resync(n node.Node) {
	defer metrics.Timer(metrics.EventReplay)()
	p, ok := b.live(n, "resync")
	if !ok {
		return
	}
	wasLeaf := p.leaf
	p.leaf = safeLeaf(n)
	if !p.materialized {
		if wasLeaf != p.leaf {
			b.emit(StructureEvent{Kind: Refreshed, Parent: p.parent, From: -1, To: -1, IDs: []ID{p.id}, Property: node.PropLeaf})
		}
		return
	}
	if p.leaf && !wasLeaf {
		b.evictChildren(p)
		return
	}
	b.diff(p)
}

// diff reconciles p's cached child proxies with the node's current
// children, reusing proxies by node identity, and emits one event.
func (b *Bridge) diff(p *Proxy) {
	kids := nonNil(safeChildren(p.node))
	old := p.children

	oldIndex := make(map[node.Node]int, len(old))
	for j, id := range old {
		if c, ok := b.proxies[id]; ok {
			oldIndex[c.node] = j
		}
	}

	used := make([]bool, len(old))
	perm := make([]int, len(old))
	next := make([]ID, 0, len(kids))
	var added []int
	for _, k := range kids {
		if j, ok := oldIndex[k]; ok && !used[j] {
			used[j] = true
			perm[j] = len(next)
			next = append(next, old[j])
			continue
		}
		added = append(added, len(next))
		next = append(next, NoID)
	}

	var removedIdx []int
	var removedIDs []ID
	for j, id := range old {
		if !used[j] {
			removedIdx = append(removedIdx, j)
			removedIDs = append(removedIDs, id)
		}
	}

	// Survivors keep their proxies; the gone are evicted before new proxies
	// are created so a node that moved within p is never mapped twice.
	for _, id := range removedIDs {
		b.evictSubtree(id, nil)
	}
	p.children = next
	var addedIDs []ID
	for _, i := range added {
		c := b.adopt(kids[i], p.id)
		next[i] = c.id
		addedIDs = append(addedIDs, c.id)
	}
	p.materialized = true

	survivorsInOrder := true
	last := -1
	for j := range old {
		if !used[j] {
			continue
		}
		if perm[j] < last {
			survivorsInOrder = false
			break
		}
		last = perm[j]
	}

	switch {
	case len(added) == 0 && len(removedIDs) == 0:
		if survivorsInOrder {
			return
		}
		var moved []int
		for j, to := range perm {
			if to != j {
				moved = append(moved, j)
			}
		}
		from, to := indexRange(moved)
		b.emit(StructureEvent{Kind: Reordered, Parent: p.id, From: from, To: to, Perm: perm, IDs: append([]ID(nil), next...)})
	case len(removedIDs) == 0 && survivorsInOrder:
		from, to := indexRange(added)
		b.emit(StructureEvent{Kind: Inserted, Parent: p.id, From: from, To: to, Indices: added, IDs: addedIDs})
	case len(added) == 0 && survivorsInOrder:
		from, to := indexRange(removedIdx)
		b.emit(StructureEvent{Kind: Removed, Parent: p.id, From: from, To: to, Indices: removedIdx, IDs: removedIDs})
	default:
		b.emit(StructureEvent{Kind: Replaced, Parent: p.id, From: 0, To: len(next) - 1, IDs: append([]ID(nil), next...)})
	}
}

func nonNil(kids []node.Node) []node.Node {
	out := kids[:0:0]
	for _, k := range kids {
		if k != nil {
			out = append(out, k)
		}
	}
	return out
}

func (b *Bridge) refreshProps(n node.Node, props map[string]bool) {
	defer metrics.Timer(metrics.EventReplay)()
	p, ok := b.live(n, "property change")
	if !ok {
		return
	}
	p.refresh()
	b.emit(StructureEvent{
		Kind:     Refreshed,
		Parent:   p.parent,
		From:     -1,
		To:       -1,
		IDs:      []ID{p.id},
		Property: joinProps(props),
	})
}

func (b *Bridge) destroyed(n node.Node) {
	if b.closed {
		return
	}
	id, ok := b.byNode[n]
	if !ok {
		metrics.EventsStale.Inc()
		return
	}
	if id == b.root {
		debug.Log("visualizer: root destroyed")
		b.SetRoot(nil)
		return
	}
	b.detach(b.proxies[id])
}
