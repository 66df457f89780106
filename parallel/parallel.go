// Package parallel provides the fork-join facility used by batched index
// operations: plain data parallelism over independent work units, no
// cancellation or timeout model.
package parallel

import (
	"runtime"
	"sync"
)

// Small batches are not worth the goroutine fan-out.
const inlineThreshold = 16

// Group is the completion handle of a forked batch. It must be awaited before
// results written by the work function are read.
type Group struct {
	wg sync.WaitGroup
}

// Wait blocks until every work unit has completed.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Run calls do(i) for every i in [0, n), fanning the calls over at most
// GOMAXPROCS goroutines. Work units must be independent: do must not touch
// shared mutable state without its own coordination.
func Run(n int, do func(i int)) *Group {
	g := &Group{}

	if n <= 0 {
		return g
	}

	if n <= inlineThreshold {
		for i := 0; i < n; i++ {
			do(i)
		}
		return g
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}

	// contiguous chunks, one per worker
	chunk := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		g.wg.Add(1)
		go func(start, end int) {
			defer g.wg.Done()

			for i := start; i < end; i++ {
				do(i)
			}
		}(start, end)
	}

	return g
}
