package eventloop

import "sync/atomic"

// runState is a lock-free state machine for the loop's run/stop lifecycle:
// a single CAS-guarded counter with no mutex on the hot path.
type runState uint32

const (
	stateAwake runState = iota
	stateRunning
	stateTerminating
	stateTerminated
)

func (s runState) String() string {
	switch s {
	case stateAwake:
		return "Awake"
	case stateRunning:
		return "Running"
	case stateTerminating:
		return "Terminating"
	case stateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState wraps an atomic runState with CAS transition helpers.
type fastState struct {
	v atomic.Uint32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(stateAwake))
	return s
}

func (s *fastState) Load() runState { return runState(s.v.Load()) }

func (s *fastState) Store(v runState) { s.v.Store(uint32(v)) }

func (s *fastState) TryTransition(from, to runState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *fastState) IsTerminal() bool { return s.Load() == stateTerminated }
