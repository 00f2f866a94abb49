package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreflow/corert/internal/eventloop"
)

// unboundedDemand is the demand an operator requests from its source: an
// operator always wants to see every upstream item immediately, and lets
// its own output stream's buffer (governed by the actual downstream
// subscriber's demand) provide backpressure instead.
const unboundedDemand = int64(1) << 62

// Map emits fn(item) for every item src emits. The output stream's
// ownership is governed by destroy, independently of src's ownership.
func Map[T, U any](src *Stream[T], fn func(T) U, destroy func(U)) *Stream[U] {
	out := New[U](destroy)
	src.Subscribe(
		func(item T) { _ = out.EmitNext(fn(item)) },
		func(code int) { _ = out.EmitError(code) },
		func() { _ = out.EmitComplete() },
		unboundedDemand,
	)
	return out
}

// Filter forwards only items satisfying pred, preserving src's ownership:
// a rejected item is destroyed iff src owns items.
func Filter[T any](src *Stream[T], pred func(T) bool) *Stream[T] {
	out := New[T](src.destroy)
	src.Subscribe(
		func(item T) {
			if pred(item) {
				_ = out.EmitNext(item)
				return
			}
			if src.destroy != nil {
				src.destroy(item)
			}
		},
		func(code int) { _ = out.EmitError(code) },
		func() { _ = out.EmitComplete() },
		unboundedDemand,
	)
	return out
}

// Take forwards up to n items from src, then completes and unsubscribes
// from src. Further src items past the nth are left to src's own
// buffering/termination discipline (buffered, then destroyed on src's own
// terminal transition if owned).
func Take[T any](src *Stream[T], n int) *Stream[T] {
	out := New[T](src.destroy)
	if n <= 0 {
		_ = out.EmitComplete()
		return out
	}

	var emitted atomic.Int64
	var sub *Subscription[T]
	sub = src.Subscribe(
		func(item T) {
			c := emitted.Add(1)
			_ = out.EmitNext(item)
			if c >= int64(n) {
				sub.Unsubscribe()
				_ = out.EmitComplete()
			}
		},
		func(code int) { _ = out.EmitError(code) },
		func() { _ = out.EmitComplete() },
		unboundedDemand,
	)
	return out
}

// Merge forwards items from both a and b in whichever order they arrive,
// completing once both sources have completed and erroring as soon as
// either does.
func Merge[T any](a, b *Stream[T], destroy func(T)) *Stream[T] {
	out := New[T](destroy)

	var mu sync.Mutex
	done := 0
	finished := false

	finishOnce := func(fn func() error) {
		mu.Lock()
		if finished {
			mu.Unlock()
			return
		}
		finished = true
		mu.Unlock()
		_ = fn()
	}

	onErr := func(code int) {
		finishOnce(func() error { return out.EmitError(code) })
	}
	onComplete := func() {
		mu.Lock()
		done++
		both := done >= 2
		mu.Unlock()
		if both {
			finishOnce(out.EmitComplete)
		}
	}
	forward := func(item T) { _ = out.EmitNext(item) }

	a.Subscribe(forward, onErr, onComplete, unboundedDemand)
	b.Subscribe(forward, onErr, onComplete, unboundedDemand)
	return out
}

// Debounce forwards the most recent upstream item once interval has
// elapsed without a further upstream item, coalescing any burst into its
// last member. The timer is driven by loop.
func Debounce[T any](src *Stream[T], loop *eventloop.Loop, interval time.Duration) *Stream[T] {
	out := New[T](src.destroy)

	var mu sync.Mutex
	var pending T
	hasPending := false
	var timerID eventloop.RegID

	fire := func() {
		mu.Lock()
		if !hasPending {
			mu.Unlock()
			return
		}
		item := pending
		hasPending = false
		timerID = 0
		mu.Unlock()
		_ = out.EmitNext(item)
	}

	src.Subscribe(
		func(item T) {
			mu.Lock()
			if hasPending && src.destroy != nil {
				src.destroy(pending)
			}
			pending = item
			hasPending = true
			if timerID != 0 {
				_ = loop.Unregister(timerID)
			}
			id, err := loop.RegisterTimer(time.Now().Add(interval), 0, fire)
			if err == nil {
				timerID = id
			}
			mu.Unlock()
		},
		func(code int) { _ = out.EmitError(code) },
		func() {
			mu.Lock()
			item := pending
			hp := hasPending
			hasPending = false
			mu.Unlock()
			if hp {
				_ = out.EmitNext(item)
			}
			_ = out.EmitComplete()
		},
		unboundedDemand,
	)

	return out
}
