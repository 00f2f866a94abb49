// Package workerpool runs a fixed number of worker goroutines against a
// shared loop function until stopped: context cancellation plus a "done"
// channel closed exactly once. dataflow.Graph uses it to run its node
// worker goroutines.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs N copies of a worker function concurrently, stopping them all
// via context cancellation.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{}
	once   sync.Once
}

// Start launches size worker goroutines, each running worker(ctx) until
// ctx is canceled by Stop. worker should return promptly (nil error) once
// ctx.Err() != nil; a non-nil error from any worker is otherwise ignored
// (errors reach callers via their own result channel, not the pool).
func Start(size int, worker func(ctx context.Context, workerID int) error) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		done:   make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		id := i
		group.Go(func() error {
			_ = worker(gctx, id)
			return nil
		})
	}

	go func() {
		_ = group.Wait()
		close(p.done)
	}()

	return p
}

// Stop cancels every worker and blocks until all have returned. Calling
// Stop more than once is a no-op.
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.cancel()
	})
	<-p.done
}
