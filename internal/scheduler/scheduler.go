// Package scheduler drives the spawn/join loop of SPEC_FULL.md §4.5 over
// a flattened run tree: workers execute on a bounded goroutine pool
// (github.com/sourcegraph/conc/pool), while a single orchestrator
// enforces the barrier and cancellation discipline the pool's own
// wait-for-all contract does not express on its own.
package scheduler

import (
	"context"
	"sync"

	"github.com/quake-build/quake/internal/runtree"
	"github.com/quake-build/quake/internal/store"
	"github.com/sourcegraph/conc/pool"
)

// Worker runs call's run body (dirtiness check included) and reports
// success or failure. The engine supplies this; the scheduler does not
// know how a call is actually evaluated.
type Worker func(ctx context.Context, call store.CallID) error

// IsConcurrent reports whether call's task is flagged concurrent, used
// to decide whether spawning continues past it this round.
type IsConcurrent func(call store.CallID) bool

// Scheduler executes a flattened run-tree sequence honoring the
// non-concurrent-task-as-barrier rule of SPEC_FULL.md §4.5.
type Scheduler struct {
	run        Worker
	concurrent IsConcurrent
	jobs       int
}

// New returns a Scheduler that invokes run for each call and consults
// concurrent to decide barrier placement. jobs caps the number of
// simultaneously-running workers; 0 means unbounded.
func New(run Worker, concurrent IsConcurrent, jobs int) *Scheduler {
	return &Scheduler{run: run, concurrent: concurrent, jobs: jobs}
}

type result struct {
	call store.CallID
	err  error
}

// Run executes nodes (the flattened, post-order run-tree sequence) to
// completion or to the first failure. Children always finish spawning
// and completing before their parent is considered for spawning — this
// holds by construction because nodes is post-order and the spawn phase
// below refuses to start a node while any of its direct run-tree
// children still has an outstanding handle.
func (s *Scheduler) Run(ctx context.Context, nodes []*runtree.Node) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	if s.jobs > 0 {
		p = p.WithMaxGoroutines(s.jobs)
	}

	var mu sync.Mutex
	handles := make(map[store.CallID]bool)
	// Buffered to the maximum possible number of outstanding sends so a
	// worker's send never blocks: a blocked send would hold its pool slot
	// forever whenever the orchestrator itself is blocked inside p.Go
	// waiting on that same slot to free (bounded --jobs).
	done := make(chan result, len(nodes))

	spawn := func(n *runtree.Node) {
		mu.Lock()
		handles[n.Call] = true
		mu.Unlock()
		p.Go(func(ctx context.Context) error {
			err := s.run(ctx, n.Call)
			done <- result{call: n.Call, err: err}
			return err
		})
	}

	hasUnfinishedChild := func(n *runtree.Node) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range n.Children {
			if handles[c.Call] {
				return true
			}
		}
		return false
	}

	idx := 0
	var firstErr error

	spawnRound := func() {
		for idx < len(nodes) {
			n := nodes[idx]
			if hasUnfinishedChild(n) {
				return
			}
			if !s.concurrent(n.Call) {
				// A non-concurrent node is a barrier: it must run alone,
				// with nothing else from this round still in flight.
				mu.Lock()
				outstanding := len(handles)
				mu.Unlock()
				if outstanding > 0 {
					return
				}
				spawn(n)
				idx++
				return
			}
			spawn(n)
			idx++
		}
	}

	spawnRound()
	for {
		mu.Lock()
		outstanding := len(handles)
		mu.Unlock()
		if outstanding == 0 && (firstErr != nil || idx >= len(nodes)) {
			break
		}

		r := <-done
		mu.Lock()
		delete(handles, r.call)
		mu.Unlock()

		if r.err != nil && firstErr == nil {
			firstErr = r.err
			cancel() // failure fencing: stop spawning, cancel outstanding workers
		}
		if firstErr == nil {
			spawnRound()
		}
	}

	_ = p.Wait() // reaps pool-internal bookkeeping; errors already captured via firstErr

	return firstErr
}
