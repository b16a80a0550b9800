// Package testutil provides node-graph fixtures and test doubles shared by
// package tests. All generators produce deterministic output for
// reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/vanderheijden86/nodeview/pkg/node"
)

// GeneratorConfig controls tree generation.
type GeneratorConfig struct {
	Seed       int64  // Random seed for determinism (0 = 42)
	NamePrefix string // Prefix for generated names (default: "n")
	Reorder    bool   // Give folders the reorderable-index capability
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42,
		NamePrefix: "n",
		Reorder:    true,
	}
}

// Generator creates in-memory node graphs with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "n"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) folderOpts() []node.MemOption {
	if g.cfg.Reorder {
		return []node.MemOption{node.WithReorder()}
	}
	return nil
}

// Flat creates a root folder with size leaf children named
// <prefix>0..<prefix>{size-1}.
func (g *Generator) Flat(size int) *node.Mem {
	root := node.NewMem("root", g.folderOpts()...)
	for i := 0; i < size; i++ {
		root.NewChild(fmt.Sprintf("%s%d", g.cfg.NamePrefix, i), node.Leaf())
	}
	return root
}

// Tree creates a complete tree: every folder above depth has breadth
// children, and the nodes at depth are leaves. Names encode the path, e.g.
// "n0.2.1".
func (g *Generator) Tree(depth, breadth int) *node.Mem {
	root := node.NewMem("root", g.folderOpts()...)
	var grow func(parent *node.Mem, prefix string, level int)
	grow = func(parent *node.Mem, prefix string, level int) {
		for i := 0; i < breadth; i++ {
			name := fmt.Sprintf("%s.%d", prefix, i)
			if level == depth {
				parent.NewChild(name, node.Leaf())
				continue
			}
			grow(parent.NewChild(name, g.folderOpts()...), name, level+1)
		}
	}
	if depth > 0 {
		grow(root, g.cfg.NamePrefix+"0", 1)
	}
	return root
}

// Chain creates a single path of size folders below the root, ending in a
// leaf.
func (g *Generator) Chain(size int) *node.Mem {
	root := node.NewMem("root", g.folderOpts()...)
	cur := root
	for i := 0; i < size; i++ {
		name := fmt.Sprintf("%s%d", g.cfg.NamePrefix, i)
		if i == size-1 {
			cur.NewChild(name, node.Leaf())
			break
		}
		cur = cur.NewChild(name, g.folderOpts()...)
	}
	return root
}

// Random creates a tree of size nodes where each new node is attached to a
// random existing folder. About a third of the nodes are leaves.
func (g *Generator) Random(size int) *node.Mem {
	root := node.NewMem("root", g.folderOpts()...)
	folders := []*node.Mem{root}
	for i := 0; i < size; i++ {
		parent := folders[g.rng.Intn(len(folders))]
		name := fmt.Sprintf("%s%d", g.cfg.NamePrefix, i)
		if g.rng.Intn(3) == 0 {
			parent.NewChild(name, node.Leaf())
			continue
		}
		folders = append(folders, parent.NewChild(name, g.folderOpts()...))
	}
	return root
}

// Outline builds a tree from an indented outline. The first line is the
// root; each further line is a child of the nearest less-indented line.
// Names ending in "/" are folders, everything else is a leaf:
//
//	root/
//	  docs/
//	    a.txt
//	  README
func Outline(text string) *node.Mem {
	type level struct {
		indent int
		m      *node.Mem
	}
	var (
		root  *node.Mem
		stack []level
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		name := strings.TrimSpace(trimmed)
		folder := strings.HasSuffix(name, "/")
		name = strings.TrimSuffix(name, "/")

		var opts []node.MemOption
		if folder {
			opts = append(opts, node.WithReorder())
		} else {
			opts = append(opts, node.Leaf())
		}
		if root == nil {
			root = node.NewMem(name, node.WithReorder())
			stack = []level{{indent: indent, m: root}}
			continue
		}
		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		child := stack[len(stack)-1].m.NewChild(name, opts...)
		stack = append(stack, level{indent: indent, m: child})
	}
	if root == nil {
		root = node.NewMem("root", node.WithReorder())
	}
	return root
}

// Lookup walks slash-separated child names from m, e.g. "docs/a.txt".
// It panics when a segment is missing, which in a test is a fixture bug.
func Lookup(m *node.Mem, path string) *node.Mem {
	cur := m
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		next := cur.Child(seg)
		if next == nil {
			panic(fmt.Sprintf("testutil: %q has no child %q", cur.DisplayName(), seg))
		}
		cur = next
	}
	return cur
}

// Count returns the number of nodes in m's subtree, m included.
func Count(m *node.Mem) int {
	n := 1
	for _, c := range m.Children() {
		n += Count(c.(*node.Mem))
	}
	return n
}

// QuickFlat is Flat with the default generator.
func QuickFlat(size int) *node.Mem {
	return NewDefault().Flat(size)
}

// QuickTree is Tree with the default generator.
func QuickTree(depth, breadth int) *node.Mem {
	return NewDefault().Tree(depth, breadth)
}

// QuickRandom is Random with the default generator.
func QuickRandom(size int) *node.Mem {
	return NewDefault().Random(size)
}
