// Package executor applies a batch of boundary transfer descriptors as one
// data-parallel operation over a bounded worker pool. It stands in for the
// device kernel launch a performance-portable build would use.
package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool is a reusable bounded worker pool.
type Pool struct {
	workers int
}

// New creates a pool with the given parallelism; values below 1 run serial.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Result counts the batch outcome.
type Result struct {
	Applied uint32
	Failed  uint32
}

// Run applies fn to every index in [0, n) across the pool and returns the
// first error along with per-item accounting. Items are independent; no
// ordering is guaranteed between them.
func (p *Pool) Run(ctx context.Context, n int, fn func(i int) error) (Result, error) {
	var applied, failed atomic.Uint32
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := fn(i); err != nil {
				failed.Add(1)
				return err
			}
			applied.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return Result{Applied: applied.Load(), Failed: failed.Load()}, err
}
