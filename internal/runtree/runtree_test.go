package runtree

import (
	"testing"

	"github.com/quake-build/quake/internal/span"
	"github.com/quake-build/quake/internal/store"
	"github.com/stretchr/testify/require"
)

func newStoreWithCalls(t *testing.T, deps map[store.CallID][]store.CallID, n int) *store.Store {
	t.Helper()
	s := store.New()
	taskID, err := s.RegisterTask(store.Task{Name: "t"})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		s.RegisterTaskCall(taskID, span.Unknown, nil)
	}
	for call, d := range deps {
		s.SetCallMetadata(call, store.TaskCallMetadata{Dependencies: d})
	}
	// calls with no explicit metadata still need metadata set for
	// CallMetadata to return a stable, populated value.
	for i := 0; i < n; i++ {
		if _, ok := deps[store.CallID(i)]; !ok {
			if !s.HasMetadata(store.CallID(i)) {
				s.SetCallMetadata(store.CallID(i), store.TaskCallMetadata{})
			}
		}
	}
	return s
}

func TestBuild_LinearChain(t *testing.T) {
	// 0 <- 1 <- 2  (2 depends on 1, 1 depends on 0)
	s := newStoreWithCalls(t, map[store.CallID][]store.CallID{
		1: {0},
		2: {1},
	}, 3)

	tree := Build(s, 2)
	order := callOrder(Flatten(tree))
	require.Equal(t, []store.CallID{0, 1, 2}, order)
}

func TestBuild_DiamondCollapsesSharedDependency(t *testing.T) {
	// 3 depends on 1 and 2; both depend on 0.
	s := newStoreWithCalls(t, map[store.CallID][]store.CallID{
		1: {0},
		2: {0},
		3: {1, 2},
	}, 4)

	tree := Build(s, 3)
	order := callOrder(Flatten(tree))
	require.Equal(t, []store.CallID{0, 1, 2, 3}, order)

	// 0 appears exactly once across the whole tree.
	require.Equal(t, 1, countOccurrences(tree, 0))
}

func TestBuild_CycleTerminatesViaFirstVisitWins(t *testing.T) {
	// 0 depends on 1 (reused ancestor), 1 depends on 0: this is exactly
	// the shape internal/engine's ancestor-reuse produces for a declared
	// cycle -- the dependency back to 0 is the same call id as the root.
	s := newStoreWithCalls(t, map[store.CallID][]store.CallID{
		0: {1},
		1: {0},
	}, 2)

	tree := Build(s, 0)
	order := callOrder(Flatten(tree))
	require.Equal(t, []store.CallID{1, 0}, order)
}

func callOrder(nodes []*Node) []store.CallID {
	out := make([]store.CallID, len(nodes))
	for i, n := range nodes {
		out[i] = n.Call
	}
	return out
}

func countOccurrences(n *Node, call store.CallID) int {
	count := 0
	if n.Call == call {
		count++
	}
	for _, c := range n.Children {
		count += countOccurrences(c, call)
	}
	return count
}
