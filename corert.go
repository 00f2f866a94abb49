// Package corert is a thin facade over the four core subsystems —
// coroutine, stream, dataflow, and supervisor — for callers who want a
// single import. Each subsystem remains independently importable; nothing
// here adds behavior beyond re-exporting the public constructors.
package corert

import (
	"time"

	"github.com/coreflow/corert/coroutine"
	"github.com/coreflow/corert/dataflow"
	"github.com/coreflow/corert/stream"
	"github.com/coreflow/corert/supervisor"
)

// SpawnCoroutine creates a new coroutine. See coroutine.Spawn.
func SpawnCoroutine[T, R any](entry func(co *coroutine.Co[T, R], arg T) R, arg T, stackHint int, opts ...coroutine.Option) *coroutine.Co[T, R] {
	return coroutine.Spawn(entry, arg, stackHint, opts...)
}

// NewStream creates a new Pending stream. See stream.New.
func NewStream[T any](destroy func(T), opts ...stream.Option) *stream.Stream[T] {
	return stream.New(destroy, opts...)
}

// NewGraph creates a new dataflow Graph. See dataflow.NewGraph.
func NewGraph(poolSize int, opts ...dataflow.Option) *dataflow.Graph {
	return dataflow.NewGraph(poolSize, opts...)
}

// NewSupervisor creates a new Supervisor. See supervisor.New.
func NewSupervisor(strategy supervisor.Strategy, maxRestarts int, window time.Duration, opts ...supervisor.Option) *supervisor.Supervisor {
	return supervisor.New(strategy, maxRestarts, window, opts...)
}
