package node

import (
	"log"
	"sync"

	"github.com/vanderheijden86/nodeview/pkg/metrics"
)

// Graph is the cooperative read/write lock shared by everything that reads
// or mutates one node graph. Many readers may hold it at once; a writer
// waits for all readers and excludes them.
//
// Events posted during a write are queued and delivered only after the write
// lock is released, in the order they were posted. Listeners therefore never
// run while the graph is locked and may read the graph freely.
//
// The lock is not reentrant: a goroutine holding read or write access must
// not request it again.
type Graph struct {
	mu sync.RWMutex

	qmu      sync.Mutex
	queue    []delivery
	draining bool
}

type delivery struct {
	ev  Event
	fns []func(Event)
}

// NewGraph returns an empty graph lock.
func NewGraph() *Graph {
	return &Graph{}
}

// ReadAccess runs fn while holding shared read access.
func (g *Graph) ReadAccess(fn func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn()
}

// WriteAccess runs fn while holding exclusive write access, then delivers
// the events fn posted.
func (g *Graph) WriteAccess(fn func()) {
	func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		fn()
	}()
	g.deliver()
}

// Post queues ev for every current subscriber of e. Callers must hold write
// access; delivery happens when the write completes.
func (g *Graph) Post(e *Emitter, ev Event) {
	fns := e.snapshot()
	if len(fns) == 0 {
		return
	}
	g.qmu.Lock()
	g.queue = append(g.queue, delivery{ev: ev, fns: fns})
	g.qmu.Unlock()
}

// deliver drains the event queue. Only one goroutine drains at a time so
// global posting order is preserved; a listener that writes to the graph
// appends to the queue and the current drainer picks it up.
func (g *Graph) deliver() {
	g.qmu.Lock()
	if g.draining {
		g.qmu.Unlock()
		return
	}
	g.draining = true
	for len(g.queue) > 0 {
		d := g.queue[0]
		g.queue[0] = delivery{}
		g.queue = g.queue[1:]
		g.qmu.Unlock()
		for _, fn := range d.fns {
			callListener(fn, d.ev)
		}
		g.qmu.Lock()
	}
	g.queue = nil
	g.draining = false
	g.qmu.Unlock()
}

func callListener(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CollaboratorPanics.Inc()
			log.Printf("warning: node listener panicked on %s: %v", ev.Kind, r)
		}
	}()
	fn(ev)
}

// Emitter keeps the subscribers of a single node in subscription order.
// The zero value is ready to use.
type Emitter struct {
	mu   sync.Mutex
	next int
	subs []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// Subscribe adds fn and returns a function removing it.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	e.next++
	id := e.next
	e.subs = append(e.subs, subscription{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.subs {
				if s.id == id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of subscribers.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Emitter) snapshot() []func(Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.subs) == 0 {
		return nil
	}
	fns := make([]func(Event), len(e.subs))
	for i, s := range e.subs {
		fns[i] = s.fn
	}
	return fns
}
