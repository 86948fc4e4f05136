// Package runtree builds the spanning tree over the call DAG described
// in spec.md §3/§4.4, and flattens it into the post-order execution
// sequence the scheduler consumes.
package runtree

import "github.com/quake-build/quake/internal/store"

// Node is one node in the run tree: a call id plus its children in
// declaration order. A call id appears at most once in the whole tree;
// diamond dependencies collapse onto the first path that reached them.
type Node struct {
	Call     store.CallID
	Children []*Node
}

// Build produces a spanning tree rooted at root by depth-first
// traversal of each call's declared dependencies, using st to resolve
// metadata. Cycles terminate via the same visited-set that dedupes
// diamonds (spec.md §4.4/§8 scenario 7).
func Build(st *store.Store, root store.CallID) *Node {
	visited := make(map[store.CallID]bool)
	var build func(call store.CallID) *Node
	build = func(call store.CallID) *Node {
		if visited[call] {
			return nil
		}
		visited[call] = true
		n := &Node{Call: call}
		for _, dep := range st.CallMetadata(call).Dependencies {
			if child := build(dep); child != nil {
				n.Children = append(n.Children, child)
			}
		}
		return n
	}
	return build(root)
}

// Flatten yields n's nodes in post-order (children before parent), the
// legal execution order per spec.md §4.4.
func Flatten(n *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			walk(c)
		}
		out = append(out, n)
	}
	walk(n)
	return out
}
