package testutil

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/nodeview/pkg/node"
)

// AssertNames verifies the display names of m's children, in order.
func AssertNames(t *testing.T, m *node.Mem, want ...string) {
	t.Helper()
	got := m.Names()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("children of %q = %v, want %v", m.DisplayName(), got, want)
	}
}

// AssertNodeNames verifies the display names of nodes, in order.
func AssertNodeNames(t *testing.T, nodes []node.Node, want ...string) {
	t.Helper()
	got := NodeNames(nodes)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
}

// AssertPermutation verifies perm is a permutation of 0..n-1.
func AssertPermutation(t *testing.T, perm []int, n int) {
	t.Helper()
	if err := node.ValidatePermutation(perm, n); err != nil {
		t.Errorf("not a permutation of %d: %v", n, err)
	}
}

// AssertNoDuplicates verifies that no node appears twice.
func AssertNoDuplicates(t *testing.T, nodes []node.Node) {
	t.Helper()
	seen := make(map[node.Node]bool, len(nodes))
	for _, n := range nodes {
		if seen[n] {
			t.Errorf("duplicate node %q", n.DisplayName())
		}
		seen[n] = true
	}
}

// NodeNames returns the display names of nodes.
func NodeNames(nodes []node.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.DisplayName()
	}
	return out
}

// Nodes converts in-memory nodes to the Node interface.
func Nodes(ms ...*node.Mem) []node.Node {
	out := make([]node.Node, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}

// TempTree creates a directory tree below t.TempDir() from an outline
// (see Outline); folders become directories and leaves empty files. It
// returns the path of the root directory.
func TempTree(t *testing.T, outline string) string {
	t.Helper()
	base := t.TempDir()

	type level struct {
		indent int
		path   string
	}
	var (
		rootPath string
		stack    []level
	)
	for _, line := range strings.Split(outline, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		name := strings.TrimSpace(trimmed)
		folder := strings.HasSuffix(name, "/")
		name = strings.TrimSuffix(name, "/")

		if rootPath == "" {
			rootPath = filepath.Join(base, name)
			if err := os.MkdirAll(rootPath, 0755); err != nil {
				t.Fatalf("failed to create root dir: %v", err)
			}
			stack = []level{{indent: indent, path: rootPath}}
			continue
		}
		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		p := filepath.Join(stack[len(stack)-1].path, name)
		if folder {
			if err := os.MkdirAll(p, 0755); err != nil {
				t.Fatalf("failed to create dir %s: %v", p, err)
			}
		} else if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
		stack = append(stack, level{indent: indent, path: p})
	}
	if rootPath == "" {
		return base
	}
	return rootPath
}
