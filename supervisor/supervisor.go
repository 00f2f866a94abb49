// Package supervisor implements a fault-tolerance controller managing a set
// of worker activities with restart policies (Permanent/Transient/
// Temporary), strategies (OneForOne/OneForAll/RestForOne), and bounded
// restart intensity.
//
// Each child runs on its own goroutine (Go's equivalent of a detached OS
// thread, since a goroutine is already an M:N green thread the supervisor
// never needs to Wait() on directly); a single monitor goroutine drains a
// shared exit-event channel in batches and serializes every restart
// decision.
package supervisor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/coreflow/corert/internal/corerr"
	"github.com/coreflow/corert/internal/restartwindow"
)

// exitChannelCapacity bounds the shared exit-event channel. Exit volume is
// naturally bounded by child count and restart intensity, so a generous
// fixed buffer stands in for the data model's "unbounded" exit channel
// without requiring a custom growable-channel goroutine.
const exitChannelCapacity = 4096

type exitEvent struct {
	childID    uint64
	generation uint64
	status     int
}

// Supervisor owns a set of Children, a restart strategy, and a shared
// restart-intensity budget (maxRestarts per window, applied per child).
type Supervisor struct {
	strategy    Strategy
	maxRestarts int
	window      time.Duration
	log         zerolog.Logger

	mu        sync.Mutex
	children  []*Child
	nextID    uint64
	nextOrder int

	running       atomic.Bool
	exitCh        chan exitEvent
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New creates a Supervisor using strategy for cascade selection and
// (maxRestarts, window) as the shared restart-intensity budget applied to
// every child. A non-positive maxRestarts means unlimited restarts.
func New(strategy Strategy, maxRestarts int, window time.Duration, opts ...Option) *Supervisor {
	cfg := resolveOptions(opts)
	return &Supervisor{
		strategy:    strategy,
		maxRestarts: maxRestarts,
		window:      window,
		log:         cfg.log,
		exitCh:      make(chan exitEvent, exitChannelCapacity),
	}
}

// AddChild registers spec, assigning it a stable id and an insertion-order
// index. If the supervisor is already running, the child is spawned
// immediately.
func (s *Supervisor) AddChild(spec ChildSpec) (uint64, error) {
	if spec.Fn == nil {
		return 0, corerr.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	order := s.nextOrder
	s.nextOrder++

	c := &Child{
		id:     id,
		order:  order,
		spec:   spec,
		window: restartwindow.New(s.maxRestarts, s.window),
	}
	c.state.Store(uint32(ChildInit))
	s.children = append(s.children, c)

	if s.running.Load() {
		s.startChildLocked(c)
	}
	return id, nil
}

// RemoveChild removes a child from the supervisor, issuing a cooperative
// stop if it is currently running. Unknown ids return
// corerr.ErrInvalidArgument.
func (s *Supervisor) RemoveChild(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return corerr.ErrInvalidArgument
	}
	c := s.children[idx]
	s.stopChildLocked(c)
	s.children = slices.Delete(s.children, idx, idx+1)
	return nil
}

// RestartChild stops and restarts the given child immediately, consulting
// its restart-intensity budget. If the budget is exceeded, the supervisor
// escalates (stopping every child and going not-running) and
// corerr.ErrIntensityExceeded is returned.
func (s *Supervisor) RestartChild(id uint64) error {
	s.mu.Lock()
	c := s.findChildLocked(id)
	if c == nil {
		s.mu.Unlock()
		return corerr.ErrInvalidArgument
	}
	ok := s.restartChildLocked(c)
	s.mu.Unlock()

	if !ok {
		s.escalate()
		return corerr.ErrIntensityExceeded
	}
	return nil
}

// ChildCount reports the number of children currently registered.
func (s *Supervisor) ChildCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// IsRunning reports whether Start has been called without a matching Stop,
// and no escalation has happened since.
func (s *Supervisor) IsRunning() bool { return s.running.Load() }

// Start spawns every registered child and the monitor goroutine. Starting
// an already-running supervisor is a state violation.
func (s *Supervisor) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return corerr.ErrStateViolation
	}

	s.mu.Lock()
	for _, c := range s.children {
		s.startChildLocked(c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.monitorCancel = cancel
	s.monitorDone = make(chan struct{})
	go func() {
		defer close(s.monitorDone)
		s.monitor(ctx)
	}()
	return nil
}

// Stop issues a cooperative stop to every child and shuts down the monitor
// goroutine. Idempotent: stopping an already-stopped supervisor is a no-op
// returning success.
func (s *Supervisor) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	for _, c := range s.children {
		s.stopChildLocked(c)
	}
	s.mu.Unlock()

	if s.monitorCancel != nil {
		s.monitorCancel()
	}
	if s.monitorDone != nil {
		<-s.monitorDone
	}
	return nil
}

func (s *Supervisor) indexOfLocked(id uint64) int {
	return slices.IndexFunc(s.children, func(c *Child) bool { return c.id == id })
}

func (s *Supervisor) findChildLocked(id uint64) *Child {
	if idx := s.indexOfLocked(id); idx >= 0 {
		return s.children[idx]
	}
	return nil
}

// stopChildLocked issues a cooperative stop to c if it is running. The
// supervisor never forces termination; ShutdownTimeout, if set, only gates
// a logged warning if c hasn't reported its exit by then. Must be called
// with s.mu held.
func (s *Supervisor) stopChildLocked(c *Child) {
	if c.State() != ChildRunning || c.cancel == nil {
		return
	}
	c.state.Store(uint32(ChildStopping))
	c.cancel()

	if c.spec.ShutdownTimeout > 0 {
		gen := c.generation.Load()
		timeout := c.spec.ShutdownTimeout
		name := c.spec.Name
		go func() {
			time.Sleep(timeout)
			if c.generation.Load() == gen && c.State() == ChildStopping {
				s.log.Warn().Str("child", name).Dur("timeout", timeout).
					Msg("supervisor: child did not report exit within shutdown timeout")
			}
		}()
	}
}

// startChildLocked spawns c's entry function on a fresh goroutine and
// bumps its generation, so a stale exit event from a prior incarnation
// (e.g. a cooperative stop that hasn't yet unwound when a restart fires)
// is recognizable as such. Must be called with s.mu held.
func (s *Supervisor) startChildLocked(c *Child) {
	ctx, cancel := context.WithCancel(context.Background())
	if c.spec.ShutdownTimeout > 0 {
		ctx = context.WithValue(ctx, shutdownTimeoutKey{}, c.spec.ShutdownTimeout)
	}
	c.cancel = cancel
	gen := c.generation.Add(1)
	c.state.Store(uint32(ChildRunning))

	go func() {
		status := c.spec.Fn(ctx)
		s.exitCh <- exitEvent{childID: c.id, generation: gen, status: status}
	}()
}

// restartChildLocked consults c's restart window, and if within budget,
// cooperatively stops (if running) and restarts c. Returns false if the
// restart budget is exhausted. Must be called with s.mu held.
func (s *Supervisor) restartChildLocked(c *Child) bool {
	if !c.window.Allow() {
		return false
	}
	s.stopChildLocked(c)
	s.startChildLocked(c)
	return true
}

// strategySetLocked returns the children to reconsider for restart given
// failed exited abnormally, per s.strategy. Must be called with s.mu held.
func (s *Supervisor) strategySetLocked(failed *Child) []*Child {
	switch s.strategy {
	case OneForAll:
		return append([]*Child(nil), s.children...)
	case RestForOne:
		var out []*Child
		for _, c := range s.children {
			if c.order >= failed.order {
				out = append(out, c)
			}
		}
		return out
	default: // OneForOne
		return []*Child{failed}
	}
}

// shouldRestart reports whether c should be restarted given the status
// that triggered this restart decision. For Transient children, that
// status is the one that drove the cascade (the considered child's own
// status if it is the one that failed, or the triggering sibling's status
// under OneForAll/RestForOne) — a group-wide restart cycle is treated as
// abnormal for every member it sweeps in.
func shouldRestart(c *Child, triggerStatus int) bool {
	switch c.spec.Restart {
	case Permanent:
		return true
	case Transient:
		return triggerStatus != 0
	default: // Temporary
		return false
	}
}

// handleExitBatch applies a whole batch of exit events under a single
// mutex acquisition, in arrival order: each event is checked against its
// child's current generation (a stale exit from a prior incarnation of a
// child that has since been restarted or removed is dropped silently, the
// same leniency the data model already grants unknown child ids), marked
// Exited, and used to decide which siblings to reconsider per strategy.
// Every child queued for restart across the whole batch is deduplicated
// (a second crash this pass for a child already slated for restart is not
// a second restart) and then restarted together, so a burst of
// simultaneous exits — e.g. every child unwinding during its own
// escalation — settles as one atomic step instead of one independent
// critical section per event. If any restart in the batch exceeds its
// intensity budget, the whole batch escalates after the lock is released.
func (s *Supervisor) handleExitBatch(batch []exitEvent) {
	s.mu.Lock()

	queued := make(map[uint64]*Child, len(batch))
	var order []*Child
	for _, ev := range batch {
		c := s.findChildLocked(ev.childID)
		if c == nil || c.generation.Load() != ev.generation {
			continue
		}
		c.state.Store(uint32(ChildExited))
		c.lastStatus.Store(int64(ev.status))

		// A stopped or escalated supervisor records exits but restarts
		// nothing.
		if !s.running.Load() {
			continue
		}

		var toConsider []*Child
		if ev.status != 0 {
			toConsider = s.strategySetLocked(c)
		} else if c.spec.Restart == Permanent {
			toConsider = []*Child{c}
		}

		for _, cc := range toConsider {
			if !shouldRestart(cc, ev.status) {
				continue
			}
			if _, dup := queued[cc.id]; dup {
				continue
			}
			queued[cc.id] = cc
			order = append(order, cc)
		}
	}

	escalate := false
	for _, cc := range order {
		if !s.restartChildLocked(cc) {
			escalate = true
		}
	}
	s.mu.Unlock()

	if escalate {
		s.escalate()
	}
}

// escalate stops every child and marks the supervisor not-running, per the
// restart-intensity invariant: exceeding the budget forces full shutdown
// rather than a partial, inconsistent restart.
func (s *Supervisor) escalate() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	for _, c := range s.children {
		s.stopChildLocked(c)
	}
	s.mu.Unlock()
	s.log.Warn().Msg("supervisor: restart intensity exceeded, escalating")
}

// exitBatchLimit caps how many exit events a single monitor pass applies
// together. Exit volume is naturally bounded by child count, so this only
// guards against one pathological burst monopolizing the monitor
// goroutine before it next checks ctx.
const exitBatchLimit = 64

// monitor drains exit events until ctx is canceled (by Stop) or the exit
// channel is closed, applying each batch in arrival order.
func (s *Supervisor) monitor(ctx context.Context) {
	for {
		batch, err := s.nextExitBatch(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Debug().Err(err).Msg("supervisor: monitor loop exiting")
			}
			return
		}
		s.handleExitBatch(batch)
	}
}

// nextExitBatch blocks until at least one exit event is available, then
// greedily drains whatever else is already buffered (up to
// exitBatchLimit), without blocking for more. This is the same
// block-for-one-then-drain-the-rest shape a long-poll batch receive
// would use, sized to what a restart monitor actually needs: react the
// moment there's anything to do, but coalesce a genuine burst (e.g. every
// child exiting at once during an escalation) into one pass instead of
// one wakeup per event.
func (s *Supervisor) nextExitBatch(ctx context.Context) ([]exitEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case ev, ok := <-s.exitCh:
		if !ok {
			return nil, io.EOF
		}
		batch := []exitEvent{ev}

		for len(batch) < exitBatchLimit {
			select {
			case ev, ok := <-s.exitCh:
				if !ok {
					return batch, nil
				}
				batch = append(batch, ev)
			default:
				return batch, nil
			}
		}
		return batch, nil
	}
}
