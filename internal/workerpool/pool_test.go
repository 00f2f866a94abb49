package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsExactlySizeWorkers(t *testing.T) {
	var started atomic.Int32
	p := Start(4, func(ctx context.Context, workerID int) error {
		started.Add(1)
		<-ctx.Done()
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for started.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.EqualValues(t, 4, started.Load())

	p.Stop()
}

func TestPool_StopIsIdempotent(t *testing.T) {
	p := Start(2, func(ctx context.Context, workerID int) error {
		<-ctx.Done()
		return nil
	})
	p.Stop()
	p.Stop() // must not block or panic
}

func TestPool_WorkersObserveCancellation(t *testing.T) {
	exited := make(chan int, 3)
	p := Start(3, func(ctx context.Context, workerID int) error {
		<-ctx.Done()
		exited <- workerID
		return nil
	})
	p.Stop()

	seen := 0
	for seen < 3 {
		select {
		case <-exited:
			seen++
		case <-time.After(time.Second):
			t.Fatal("not all workers exited")
		}
	}
}
