package node

// PathFromRoot returns the chain of nodes from root down to n inclusive, or
// nil if n is not in root's subtree.
func PathFromRoot(root, n Node) []Node {
	if root == nil || n == nil {
		return nil
	}
	var rev []Node
	for cur := n; cur != nil; cur = cur.Parent() {
		rev = append(rev, cur)
		if cur == root {
			path := make([]Node, len(rev))
			for i := range rev {
				path[i] = rev[len(rev)-1-i]
			}
			return path
		}
	}
	return nil
}

// IsUnder reports whether n is root or a descendant of root.
func IsUnder(root, n Node) bool {
	if root == nil || n == nil {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur == root {
			return true
		}
	}
	return false
}

// IsAncestor reports whether a is a strict ancestor of n.
func IsAncestor(a, n Node) bool {
	if n == nil {
		return false
	}
	return IsUnder(a, n.Parent())
}

// IndexIn returns the position of child among parent's current children,
// preferring the reorderable index when the parent has one.
func IndexIn(parent, child Node) int {
	if r, ok := ReorderableOf(parent); ok {
		return r.IndexOf(child)
	}
	for i, c := range parent.Children() {
		if c == child {
			return i
		}
	}
	return -1
}
