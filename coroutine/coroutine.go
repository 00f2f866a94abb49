// Package coroutine implements cooperative, single-threaded green threads
// with explicit suspension, bidirectional payload exchange, and
// cooperative cancellation.
//
// It layers the payload-exchange protocol and the Ready/Running/Done/
// Canceled state machine on top of internal/greenthread's bare
// resume/yield rendezvous. The state is a single atomic word updated with
// plain atomic stores, and the resume/yield payload slots are guarded by a
// plain mutex.
package coroutine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coreflow/corert/internal/greenthread"
)

// Errors returned by public operations. Every public operation either
// succeeds and updates state, or fails and leaves state unchanged.
var (
	ErrInvalidHandle  = errors.New("coroutine: invalid or nil handle")
	ErrTerminal       = errors.New("coroutine: coroutine is already terminal")
	ErrAlreadyRunning = errors.New("coroutine: coroutine is already running")
)

type state uint32

const (
	stateReady state = iota
	stateRunning
	stateDone
	stateCanceled
)

func (s state) isTerminal() bool { return s == stateDone || s == stateCanceled }

// Co is a cooperative coroutine exchanging payloads of type T on resume
// and type R on yield/return.
type Co[T, R any] struct {
	thread *greenthread.Thread

	st state32

	mu         sync.Mutex
	resumeSlot T
	yieldSlot  R

	result R
	panicV any
	joined atomic.Bool

	log zerolog.Logger
}

type state32 struct{ v atomic.Uint32 }

func (s *state32) load() state   { return state(s.v.Load()) }
func (s *state32) store(v state) { s.v.Store(uint32(v)) }

// Spawn creates a new coroutine running entry, starting in the Ready
// state. entry is invoked on its own goroutine; the first call to Resume
// actually starts it running. arg only seeds the resume slot: the first
// Resume overwrites it with its payload, so entry's argument is the
// payload of that first Resume. stackHint is accepted for interface
// parity with the external GreenThread contract's stack-size parameter
// but is otherwise unused (Go goroutines grow their own stacks).
func Spawn[T, R any](entry func(co *Co[T, R], arg T) R, arg T, stackHint int, opts ...Option) *Co[T, R] {
	cfg := resolveOptions(opts)
	co := &Co[T, R]{log: cfg.log}
	co.st.store(stateReady)
	co.resumeSlot = arg

	co.thread = greenthread.Spawn(func(t *greenthread.Thread) {
		co.st.store(stateRunning)

		if t.IsCanceled() {
			co.st.store(stateCanceled)
			return
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					co.panicV = r
					co.log.Warn().Interface("panic", r).Msg("coroutine: entry panic recovered")
				}
			}()
			co.mu.Lock()
			a := co.resumeSlot
			co.mu.Unlock()

			co.result = entry(co, a)
		}()

		if co.panicV != nil || t.IsCanceled() {
			co.st.store(stateCanceled)
		} else {
			co.st.store(stateDone)
		}
	})

	return co
}

// Yield is called from inside entry to suspend the coroutine, handing
// payload back to whoever is blocked in Resume, and returning whatever
// payload the next Resume call provides.
func Yield[T, R any](co *Co[T, R], payload R) T {
	co.mu.Lock()
	co.yieldSlot = payload
	co.mu.Unlock()

	co.st.store(stateReady)
	co.thread.Yield()
	co.st.store(stateRunning)

	co.mu.Lock()
	v := co.resumeSlot
	co.mu.Unlock()
	return v
}

// Resume writes payload into the resume slot and runs the coroutine until
// its next yield or termination, returning whatever it yielded (or its
// final result, on termination).
func (co *Co[T, R]) Resume(payload T) (R, error) {
	st := co.st.load()
	if st.isTerminal() {
		var zero R
		return zero, ErrTerminal
	}
	if st == stateRunning {
		var zero R
		return zero, ErrAlreadyRunning
	}

	co.mu.Lock()
	co.resumeSlot = payload
	co.mu.Unlock()

	if err := co.thread.Resume(); err != nil {
		var zero R
		return zero, ErrTerminal
	}

	if co.st.load().isTerminal() {
		return co.result, nil
	}

	co.mu.Lock()
	v := co.yieldSlot
	co.mu.Unlock()
	return v, nil
}

// Join blocks until the coroutine reaches a terminal state and returns
// its final result. Join on a coroutine that never yields or returns
// blocks until it does; Join is safe to call repeatedly and from
// multiple goroutines.
func (co *Co[T, R]) Join() (R, error) {
	if err := co.thread.Join(); err != nil {
		var zero R
		return zero, ErrInvalidHandle
	}
	co.joined.Store(true)
	if co.panicV != nil {
		var zero R
		return zero, panicError{co.panicV}
	}
	return co.result, nil
}

// Joined reports whether Join has returned at least once.
func (co *Co[T, R]) Joined() bool { return co.joined.Load() }

// Cancel requests cooperative cancellation. Returns ErrTerminal if the
// coroutine has already reached Done or Canceled.
func (co *Co[T, R]) Cancel() error {
	if co.st.load().isTerminal() {
		return ErrTerminal
	}
	if err := co.thread.Cancel(); err != nil {
		return ErrTerminal
	}
	return nil
}

// IsAlive reports whether the coroutine has not yet reached a terminal
// state.
func (co *Co[T, R]) IsAlive() bool { return !co.st.load().isTerminal() }

// IsCanceled reports whether cancellation has been requested or applied.
func (co *Co[T, R]) IsCanceled() bool {
	return co.thread.IsCanceled() || co.st.load() == stateCanceled
}

// Destroy cancels a still-alive coroutine and joins it. If the coroutine
// is parked waiting on a Yield, a pending Resume is required to unblock
// it so it can observe cancellation; Destroy issues that resume itself.
func (co *Co[T, R]) Destroy() error {
	if co.IsAlive() {
		_ = co.Cancel()
		if co.st.load() == stateReady {
			var zero T
			_, _ = co.Resume(zero)
		}
	}
	_, err := co.Join()
	if _, ok := err.(panicError); ok {
		return nil
	}
	return err
}

// panicError wraps a recovered panic value from entry, surfaced via Join.
type panicError struct{ v any }

func (p panicError) Error() string { return "coroutine: entry panicked" }
func (p panicError) Unwrap() error {
	if err, ok := p.v.(error); ok {
		return err
	}
	return nil
}
