package supervisor

import (
	"sync/atomic"

	"github.com/coreflow/corert/internal/restartwindow"
)

// Child is one supervised activity: its spec, lifecycle state, and its own
// restart-intensity budget.
type Child struct {
	id    uint64
	order int
	spec  ChildSpec

	state      atomic.Uint32
	generation atomic.Uint64
	lastStatus atomic.Int64

	window *restartwindow.Window
	cancel func()
}

// ID returns the child's id, stable for its lifetime in the supervisor.
func (c *Child) ID() uint64 { return c.id }

// Name returns the child's spec name.
func (c *Child) Name() string { return c.spec.Name }

// State reports the child's current lifecycle state.
func (c *Child) State() ChildState { return ChildState(c.state.Load()) }

// LastExitStatus reports the status from the child's most recent exit, or
// zero if it has never exited.
func (c *Child) LastExitStatus() int { return int(c.lastStatus.Load()) }
