// Package stream implements push-based value streams with per-subscriber
// demand-driven backpressure and operator composition (map, filter, take,
// merge, debounce), plus event-loop-backed sources (timer, fd readiness).
//
// A Stream owns at most one buffered FIFO of undelivered items: an item is
// buffered only when, at emission time, no subscriber held positive
// demand. Delivery callbacks always run with the stream's mutex released,
// so a subscriber's next/error/complete callback is free to call back
// into the stream (e.g. Request) without deadlocking.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coreflow/corert/internal/corerr"
)

// State is one of the three states a Stream can be in. Error and
// Completed are absorbing: once reached, no further items are buffered
// or delivered.
type State int

const (
	Pending State = iota
	Error
	Completed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Error:
		return "Error"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Stream is a push source of items of type T. If destroy is non-nil, the
// stream owns every item it carries: any item dropped without reaching a
// subscriber (cleared on termination, rejected by a terminal emit) is
// passed to destroy exactly once.
type Stream[T any] struct {
	destroy func(T)
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	errCode int
	buf     []T
	subs    []*Subscription[T]
}

// Subscription is a single subscriber's view of a Stream: a demand
// counter it grows via Request, and the three callbacks the stream
// invokes as items (or terminal state) arrive.
type Subscription[T any] struct {
	parent *Stream[T]

	next       func(T)
	onErr      func(int)
	onComplete func()

	demand       atomic.Int64
	unsubscribed atomic.Bool

	UserData any
}

// New creates a Pending stream. destroy, if non-nil, is called exactly
// once per item the stream drops without ever handing it to a
// subscriber.
func New[T any](destroy func(T), opts ...Option) *Stream[T] {
	cfg := resolveOptions(opts)
	return &Stream[T]{destroy: destroy, log: cfg.log}
}

// State reports the stream's current state.
func (s *Stream[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsCompleted reports whether the stream has reached a terminal state.
func (s *Stream[T]) IsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Pending
}

// SubscriberCount reports the number of subscriptions that have not
// unsubscribed.
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if !sub.unsubscribed.Load() {
			n++
		}
	}
	return n
}

func (s *Stream[T]) destroyItem(item T) {
	if s.destroy != nil {
		s.destroy(item)
	}
}

// Subscribe appends a new subscription with the given initial demand. If
// the stream is already terminal, the corresponding terminal callback
// fires synchronously exactly once and the subscription is returned
// already unsubscribed. Otherwise, buffered items are drained
// immediately up to the initial demand, oldest first.
func (s *Stream[T]) Subscribe(next func(T), onErr func(int), onComplete func(), initialDemand int64) *Subscription[T] {
	sub := &Subscription[T]{parent: s, next: next, onErr: onErr, onComplete: onComplete}
	sub.demand.Store(initialDemand)

	s.mu.Lock()
	switch s.state {
	case Error:
		code := s.errCode
		s.mu.Unlock()
		sub.unsubscribed.Store(true)
		if onErr != nil {
			onErr(code)
		}
		return sub
	case Completed:
		s.mu.Unlock()
		sub.unsubscribed.Store(true)
		if onComplete != nil {
			onComplete()
		}
		return sub
	}

	s.subs = append(s.subs, sub)
	toDeliver := s.drainLocked(sub)
	s.mu.Unlock()

	for _, item := range toDeliver {
		next(item)
	}
	return sub
}

// drainLocked pulls buffered items into sub up to its current demand.
// Must be called with s.mu held; the returned items are to be delivered
// after the caller releases the lock.
func (s *Stream[T]) drainLocked(sub *Subscription[T]) []T {
	var out []T
	for len(s.buf) > 0 && sub.demand.Load() > 0 {
		out = append(out, s.buf[0])
		s.buf = s.buf[1:]
		sub.demand.Add(-1)
	}
	return out
}

// Request adds n to the subscription's demand and delivers any buffered
// items that demand now covers. A no-op once unsubscribed.
func (sub *Subscription[T]) Request(n int64) {
	if n <= 0 || sub.unsubscribed.Load() {
		return
	}
	sub.demand.Add(n)

	s := sub.parent
	s.mu.Lock()
	toDeliver := s.drainLocked(sub)
	s.mu.Unlock()

	for _, item := range toDeliver {
		sub.next(item)
	}
}

// Unsubscribe marks the subscription inert. Idempotent: unsubscribing an
// already-unsubscribed subscription does nothing.
func (sub *Subscription[T]) Unsubscribe() {
	sub.unsubscribed.Store(true)
}

// Unsubscribed reports whether Unsubscribe has been called.
func (sub *Subscription[T]) Unsubscribed() bool { return sub.unsubscribed.Load() }

// Demand reports the subscriber's currently outstanding demand.
func (sub *Subscription[T]) Demand() int64 { return sub.demand.Load() }

// EmitNext delivers item to every non-unsubscribed subscriber with
// positive demand, decrementing each such subscriber's demand by one. If
// no subscriber could accept it, item is buffered instead. Returns
// corerr.ErrStateViolation (destroying item, if owned) if the stream is
// already terminal.
func (s *Stream[T]) EmitNext(item T) error {
	s.mu.Lock()
	if s.state != Pending {
		st := s.state
		s.mu.Unlock()
		s.destroyItem(item)
		s.log.Debug().Str("state", st.String()).Msg("stream: emit rejected by terminal stream")
		return corerr.ErrStateViolation
	}

	var targets []*Subscription[T]
	for _, sub := range s.subs {
		if !sub.unsubscribed.Load() && sub.demand.Load() > 0 {
			sub.demand.Add(-1)
			targets = append(targets, sub)
		}
	}

	if len(targets) == 0 {
		s.buf = append(s.buf, item)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	for _, sub := range targets {
		sub.next(item)
	}
	s.destroyItem(item)
	return nil
}

// EmitError transitions Pending to Error(code), destroying any buffered
// items, and broadcasts the error to every non-unsubscribed subscriber.
func (s *Stream[T]) EmitError(code int) error {
	s.mu.Lock()
	if s.state != Pending {
		s.mu.Unlock()
		return corerr.ErrStateViolation
	}
	s.state = Error
	s.errCode = code
	buf := s.buf
	s.buf = nil
	subs := append([]*Subscription[T](nil), s.subs...)
	s.mu.Unlock()

	for _, item := range buf {
		s.destroyItem(item)
	}
	for _, sub := range subs {
		if sub.unsubscribed.Load() || sub.onErr == nil {
			continue
		}
		sub.onErr(code)
	}
	return nil
}

// EmitComplete transitions Pending to Completed, destroying any buffered
// items, and broadcasts completion to every non-unsubscribed subscriber.
func (s *Stream[T]) EmitComplete() error {
	s.mu.Lock()
	if s.state != Pending {
		s.mu.Unlock()
		return corerr.ErrStateViolation
	}
	s.state = Completed
	buf := s.buf
	s.buf = nil
	subs := append([]*Subscription[T](nil), s.subs...)
	s.mu.Unlock()

	for _, item := range buf {
		s.destroyItem(item)
	}
	for _, sub := range subs {
		if sub.unsubscribed.Load() || sub.onComplete == nil {
			continue
		}
		sub.onComplete()
	}
	return nil
}
