// Package greenthread is the in-process stand-in for the external
// stackful-coroutine substrate the core's Coroutine subsystem is specified
// against: spawn/resume/yield/join/cancel on a unit of cooperative
// execution.
//
// A Go goroutine is already a cheap, preemptible-by-the-scheduler green
// thread, so there is no stack to allocate or context to switch here —
// Thread only needs to provide the *rendezvous* a coroutine library
// layers payload exchange on top of: Resume hands control to the
// goroutine and blocks until it yields or finishes; Yield (called from
// inside the goroutine) hands control back and blocks until resumed
// again. Atomic flags rather than a mutex track liveness and
// cancellation.
package greenthread

import (
	"errors"
	"sync/atomic"
)

// ErrDead is returned by Resume/Cancel when the thread has already
// finished running.
var ErrDead = errors.New("greenthread: thread is not alive")

// Thread is a single cooperative unit of execution backed by a goroutine.
type Thread struct {
	resumeCh chan struct{}
	yieldCh  chan struct{}
	doneCh   chan struct{}

	alive    atomic.Bool
	canceled atomic.Bool
}

// Spawn starts entry on a new goroutine, parked immediately until the
// first Resume. entry receives t so it can call t.Yield and t.IsCanceled
// without relying on any thread-local "current thread" lookup.
func Spawn(entry func(t *Thread)) *Thread {
	t := &Thread{
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	t.alive.Store(true)

	go func() {
		defer func() {
			t.alive.Store(false)
			close(t.doneCh)
		}()
		<-t.resumeCh
		entry(t)
	}()

	return t
}

// Resume hands control to the thread and blocks until it next yields or
// finishes. Returns ErrDead if the thread is not alive.
func (t *Thread) Resume() error {
	if !t.alive.Load() {
		return ErrDead
	}
	select {
	case t.resumeCh <- struct{}{}:
	case <-t.doneCh:
		return nil
	}
	select {
	case <-t.yieldCh:
	case <-t.doneCh:
	}
	return nil
}

// Yield hands control back to whoever called Resume, and blocks until
// Resume is called again. Must only be called from inside entry, on the
// thread's own goroutine.
func (t *Thread) Yield() {
	t.yieldCh <- struct{}{}
	<-t.resumeCh
}

// Cancel requests cooperative cancellation. Non-blocking and idempotent;
// the thread is expected to poll IsCanceled at safe points (typically
// just before or after a Yield). Returns ErrDead if already finished.
func (t *Thread) Cancel() error {
	if !t.alive.Load() {
		return ErrDead
	}
	t.canceled.Store(true)
	return nil
}

// IsCanceled reports whether Cancel has been requested.
func (t *Thread) IsCanceled() bool { return t.canceled.Load() }

// IsAlive reports whether the backing goroutine has not yet finished.
func (t *Thread) IsAlive() bool { return t.alive.Load() }

// Join blocks until the thread has finished. Idempotent and safe to call
// from multiple goroutines.
func (t *Thread) Join() error {
	<-t.doneCh
	return nil
}

// Destroy requests cancellation and waits for the thread to finish. If
// the thread is currently parked waiting on Resume (suspended at a
// Yield), Destroy must be paired with a final Resume by the coroutine
// layer so the parked goroutine can observe IsCanceled and return; Destroy
// itself only sets the flag and joins, it does not resume.
func (t *Thread) Destroy() error {
	_ = t.Cancel()
	return t.Join()
}
