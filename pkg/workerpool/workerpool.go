// Package workerpool provides a bounded-concurrency helper for offloading
// CPU-heavy proof generation, grounded on the teacher's referenced (but
// absent from the retrieval pack) pkg/pool and reimplemented directly over
// golang.org/x/sync/errgroup with a semaphore.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool runs submitted work with at most the size given to New tasks running
// at once (each task gets its own goroutine, gated by a semaphore).
type Pool struct {
	sem chan struct{}
}

// New returns a Pool allowing at most size concurrent tasks.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Run executes every task, capping concurrency at the pool's size, and
// returns the first error encountered (cancelling the remaining tasks'
// context, though not the goroutines already past their cancellation
// check).
func (p *Pool) Run(ctx context.Context, tasks []func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			select {
			case p.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-p.sem }()
			return task(gctx)
		})
	}
	return g.Wait()
}
