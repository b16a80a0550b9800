package explorer

import (
	"fmt"

	"github.com/vanderheijden86/nodeview/pkg/node"
)

// Policy decides which proposed selections a view can live with. Accept
// sees the complete proposed state.
type Policy interface {
	Name() string
	Accept(proposed State, nodes []node.Node) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc struct {
	Label string
	Fn    func(proposed State, nodes []node.Node) error
}

func (p PolicyFunc) Name() string { return p.Label }

func (p PolicyFunc) Accept(proposed State, nodes []node.Node) error {
	return p.Fn(proposed, nodes)
}

// UnderRoot accepts any node under the root context. Tree views use it.
var UnderRoot Policy = PolicyFunc{
	Label: "tree",
	Fn: func(proposed State, nodes []node.Node) error {
		for _, n := range nodes {
			if !node.IsUnder(proposed.Root, n) {
				return fmt.Errorf("%s is outside the root context", safeLabel(n))
			}
		}
		return nil
	},
}

// ExploredChildren accepts children of the explored context, plus the root
// context itself. List and table views, which show one folder, use it.
var ExploredChildren Policy = PolicyFunc{
	Label: "folder",
	Fn: func(proposed State, nodes []node.Node) error {
		for _, n := range nodes {
			if n == proposed.Root {
				continue
			}
			if proposed.Explored == nil || n.Parent() != proposed.Explored {
				return fmt.Errorf("%s is not in the explored folder", safeLabel(n))
			}
		}
		return nil
	},
}
