package eventloop

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// RegID identifies a registered timer or I/O callback, returned by
// RegisterTimer/RegisterIO and consumed by Unregister. Zero is never
// issued, so it doubles as a null marker for callers that want one.
type RegID uint64

// IOMask describes readiness bits for an I/O registration.
type IOMask uint32

const (
	IORead IOMask = 1 << iota
	IOWrite
	IOError
	IOHangup
)

// timerEntry is one scheduled (or repeating) callback.
type timerEntry struct {
	id       RegID
	when     time.Time
	period   time.Duration // 0 for one-shot
	cb       func()
	canceled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

type ioEvent struct {
	id   RegID
	mask IOMask
}

// loopInternal is only ever touched from the loop goroutine; all mutation
// is funneled through Loop.reqCh closures so no mutex is required here, and
// registered callbacks never run with any lock held.
type loopInternal struct {
	timers  timerHeap
	ioCBs   map[RegID]func(IOMask)
	timerBy map[RegID]*timerEntry
	nextID  uint64
}

func newLoopInternal() *loopInternal {
	return &loopInternal{
		ioCBs:   make(map[RegID]func(IOMask)),
		timerBy: make(map[RegID]*timerEntry),
		nextID:  1,
	}
}

func (in *loopInternal) allocID() RegID {
	id := RegID(in.nextID)
	in.nextID++
	return id
}

func (in *loopInternal) addTimer(first time.Time, period time.Duration, cb func()) RegID {
	id := in.allocID()
	t := &timerEntry{id: id, when: first, period: period, cb: cb}
	heap.Push(&in.timers, t)
	in.timerBy[id] = t
	return id
}

func (in *loopInternal) addIO(cb func(IOMask)) RegID {
	id := in.allocID()
	in.ioCBs[id] = cb
	return id
}

func (in *loopInternal) remove(id RegID) bool {
	if t, ok := in.timerBy[id]; ok {
		t.canceled = true
		delete(in.timerBy, id)
		return true
	}
	if _, ok := in.ioCBs[id]; ok {
		delete(in.ioCBs, id)
		return true
	}
	return false
}

// popDue pops and returns timers due at or before now, rescheduling
// periodic ones back onto the heap. If limit > 0, at most limit timers are
// popped; anything left due is simply left in the heap with its already-
// past when, so the next wake picks it straight back up.
func (in *loopInternal) popDue(now time.Time, limit int) []*timerEntry {
	var due []*timerEntry
	for in.timers.Len() > 0 && !in.timers[0].when.After(now) {
		if limit > 0 && len(due) >= limit {
			break
		}
		t := heap.Pop(&in.timers).(*timerEntry)
		if t.canceled {
			continue
		}
		due = append(due, t)
		if t.period > 0 {
			t.when = now.Add(t.period)
			heap.Push(&in.timers, t)
		} else {
			delete(in.timerBy, t.id)
		}
	}
	return due
}

// Loop is a minimal single-goroutine event loop: a container/heap timer
// queue plus an optional best-effort I/O poller.
type Loop struct {
	state  *fastState
	cfg    *loopOptions
	reqCh  chan func(*loopInternal)
	ioCh   chan ioEvent
	doneCh chan struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	poller    ioPoller
	pollerErr atomic.Value // error, set if poller.init failed
}

// New constructs a Loop in the Awake state. Call Run (typically in its own
// goroutine) to start processing, and Shutdown to stop it.
func New(opts ...Option) *Loop {
	l := &Loop{
		state:      newFastState(),
		cfg:        resolveOptions(opts),
		reqCh:      make(chan func(*loopInternal)),
		ioCh:       make(chan ioEvent, 64),
		doneCh:     make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
	l.poller = newIOPoller(l.ioCh)
	return l
}

// Run processes timers and I/O callbacks until Shutdown is called. It
// returns ErrLoopAlreadyRunning if the loop is already running or
// terminated.
func (l *Loop) Run() error {
	if !l.state.TryTransition(stateAwake, stateRunning) {
		return ErrLoopAlreadyRunning
	}
	defer func() {
		l.state.Store(stateTerminated)
		close(l.doneCh)
	}()

	if l.poller != nil {
		if err := l.poller.init(); err != nil {
			l.pollerErr.Store(err)
			l.poller = nil
		} else {
			defer l.poller.close()
		}
	}

	in := newLoopInternal()

	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if in.timers.Len() > 0 {
			d := time.Until(in.timers[0].when)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-l.shutdownCh:
			if timer != nil {
				timer.Stop()
			}
			return nil

		case req := <-l.reqCh:
			if timer != nil {
				timer.Stop()
			}
			req(in)

		case ev := <-l.ioCh:
			if timer != nil {
				timer.Stop()
			}
			if cb, ok := in.ioCBs[ev.id]; ok {
				cb(ev.mask)
			}

		case now := <-timerC:
			for _, t := range in.popDue(now, l.cfg.tickBudget) {
				t.cb()
			}
		}
	}
}

// RegisterTimer schedules cb to run at first, and every period thereafter
// if period > 0 (a one-shot if period <= 0).
func (l *Loop) RegisterTimer(first time.Time, period time.Duration, cb func()) (RegID, error) {
	if cb == nil {
		return 0, ErrInvalidPeriod
	}
	resultCh := make(chan RegID, 1)
	if err := l.dispatch(func(in *loopInternal) {
		resultCh <- in.addTimer(first, period, cb)
	}); err != nil {
		return 0, err
	}
	return <-resultCh, nil
}

// RegisterIO registers fd for readiness callbacks matching mask. Returns
// ErrIOUnsupported if this platform/build has no poller.
func (l *Loop) RegisterIO(fd int, mask IOMask, cb func(IOMask)) (RegID, error) {
	if l.poller == nil {
		if err, _ := l.pollerErr.Load().(error); err != nil {
			return 0, err
		}
		return 0, ErrIOUnsupported
	}
	resultCh := make(chan regIOResult, 1)
	if err := l.dispatch(func(in *loopInternal) {
		id := in.addIO(cb)
		err := l.poller.registerFD(fd, mask, id)
		if err != nil {
			delete(in.ioCBs, id)
		}
		resultCh <- regIOResult{id, err}
	}); err != nil {
		return 0, err
	}
	res := <-resultCh
	return res.id, res.err
}

type regIOResult struct {
	id  RegID
	err error
}

// Unregister cancels a timer or I/O registration. Unregistering an unknown
// or already-removed id is a no-op.
func (l *Loop) Unregister(id RegID) error {
	return l.dispatch(func(in *loopInternal) {
		in.remove(id)
		if l.poller != nil {
			_ = l.poller.unregisterFD(id)
		}
	})
}

// dispatch runs fn on the loop goroutine, blocking until either it is
// accepted or the loop is not running.
func (l *Loop) dispatch(fn func(*loopInternal)) error {
	switch l.state.Load() {
	case stateTerminated, stateTerminating:
		return ErrLoopTerminated
	case stateAwake:
		return ErrLoopNotRunning
	}
	select {
	case l.reqCh <- fn:
		return nil
	case <-l.doneCh:
		return ErrLoopTerminated
	}
}

// Shutdown stops the loop. It is idempotent: a second call while the loop
// is already terminating or terminated is a no-op.
func (l *Loop) Shutdown() {
	l.shutdownOnce.Do(func() {
		if l.state.TryTransition(stateAwake, stateTerminated) {
			close(l.doneCh)
			return
		}
		l.state.TryTransition(stateRunning, stateTerminating)
		close(l.shutdownCh)
	})
	<-l.doneCh
}

// IsRunning reports whether the loop is currently processing.
func (l *Loop) IsRunning() bool { return l.state.Load() == stateRunning }
