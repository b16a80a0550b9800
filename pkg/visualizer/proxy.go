package visualizer

import (
	"fmt"
	"log"

	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/uithread"
)

// ID is the stable arena index of a proxy. IDs are never reused within a
// Bridge, so a stale ID simply fails to resolve.
type ID int

// NoID is the zero ID; it never names a proxy.
const NoID ID = 0

// UnavailableName is shown when a node's display name cannot be read.
const UnavailableName = "<unavailable>"

// Proxy is the UI-side stand-in for one node under the bridge's root.
// ID and Node may be read from any goroutine; everything else is confined to
// the bridge's UI loop.
type Proxy struct {
	id     ID
	node   node.Node
	parent ID

	children     []ID
	materialized bool
	expanded     bool

	leaf bool
	name string
	desc string

	unsubscribe func()
	evict       *uithread.Timer
}

// ID returns the proxy's arena id.
func (p *Proxy) ID() ID { return p.id }

// Node returns the wrapped node.
func (p *Proxy) Node() node.Node { return p.node }

// Parent returns the parent proxy id, or NoID for the root.
func (p *Proxy) Parent() ID { return p.parent }

// Name returns the cached display name.
func (p *Proxy) Name() string { return p.name }

// Description returns the cached short description.
func (p *Proxy) Description() string { return p.desc }

// IsLeaf returns the cached leaf flag.
func (p *Proxy) IsLeaf() bool { return p.leaf }

// Expanded reports whether the proxy is expanded in the views.
func (p *Proxy) Expanded() bool { return p.expanded }

// Materialized reports whether the children have been read.
func (p *Proxy) Materialized() bool { return p.materialized }

// EvictionPending reports whether a collapse eviction is scheduled.
func (p *Proxy) EvictionPending() bool { return p.evict != nil }

func (p *Proxy) String() string {
	return fmt.Sprintf("proxy#%d(%s)", p.id, p.name)
}

// refresh re-reads the display metadata from the node.
func (p *Proxy) refresh() {
	p.name = safeName(p.node)
	p.desc = safeDescription(p.node)
	p.leaf = safeLeaf(p.node)
}

func safeName(n node.Node) (name string) {
	defer func() {
		if r := recover(); r != nil {
			collaboratorPanic("DisplayName", r)
			name = UnavailableName
		}
	}()
	return n.DisplayName()
}

func safeDescription(n node.Node) (desc string) {
	defer func() {
		if r := recover(); r != nil {
			collaboratorPanic("ShortDescription", r)
			desc = ""
		}
	}()
	return n.ShortDescription()
}

func safeLeaf(n node.Node) (leaf bool) {
	defer func() {
		if r := recover(); r != nil {
			collaboratorPanic("IsLeaf", r)
			leaf = true
		}
	}()
	return n.IsLeaf()
}

func safeChildren(n node.Node) (kids []node.Node) {
	defer func() {
		if r := recover(); r != nil {
			collaboratorPanic("Children", r)
			kids = nil
		}
	}()
	return n.Children()
}

func collaboratorPanic(call string, r any) {
	metrics.CollaboratorPanics.Inc()
	log.Printf("warning: node %s panicked: %v", call, r)
}
