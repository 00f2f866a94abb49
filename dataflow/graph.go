// Package dataflow implements a directed multigraph of handler nodes
// connected by bounded channels, driven by a fixed-size worker pool: push
// an item into a node's inbox, and some worker eventually claims it and
// runs the node's handler, which may emit to any of the node's outbound
// ports.
package dataflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/coreflow/corert/internal/corerr"
	"github.com/coreflow/corert/internal/workerpool"
)

// Graph owns a stable set of Node and Edge records; Node and Edge hold
// only non-owning references to each other, so removing a node or edge
// from the graph is the single point of truth for its lifetime.
type Graph struct {
	mu         sync.Mutex
	nodes      []*Node
	edges      []*Edge
	nextNodeID uint64
	nextEdgeID uint64

	poolSize int
	running  atomic.Bool
	pool     *workerpool.Pool
	log      zerolog.Logger
}

// NewGraph creates a Graph whose Start will run poolSize worker
// goroutines. Panics if poolSize <= 0, a construction-time programmer
// error rather than a runtime condition.
func NewGraph(poolSize int, opts ...Option) *Graph {
	if poolSize <= 0 {
		panic("dataflow: poolSize must be positive")
	}
	cfg := resolveOptions(opts)
	return &Graph{poolSize: poolSize, log: cfg.log}
}

// AddNode registers a new node with the given handler, opaque user
// context, and number of outbound ports.
func (g *Graph) AddNode(handler Handler, ctx any, ports int) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextNodeID
	g.nextNodeID++

	n := &Node{
		id:      id,
		handler: handler,
		userCtx: ctx,
		inbox:   newInbox(),
		outs:    make([][]*Edge, ports),
	}
	g.nodes = append(g.nodes, n)
	return n
}

// Connect creates a new edge from src's port to dst, with the given
// bounded capacity and optional item destructor, and inserts it at the
// head of src.outs[port].
func (g *Graph) Connect(src *Node, port int, dst *Node, capacity int, destroy func(any)) (*Edge, error) {
	if src == nil || dst == nil || port < 0 || port >= len(src.outs) || capacity < 0 {
		return nil, corerr.ErrInvalidArgument
	}

	g.mu.Lock()
	id := g.nextEdgeID
	g.nextEdgeID++
	e := newEdge(id, src, port, dst, capacity, destroy)
	g.edges = append(g.edges, e)
	g.mu.Unlock()

	src.mu.Lock()
	src.outs[port] = append([]*Edge{e}, src.outs[port]...)
	src.mu.Unlock()

	go e.forward()
	return e, nil
}

// Disconnect tears e down: removes it from the graph and from its source
// node's port, then drains and destroys whatever was still buffered in
// its channel.
func (g *Graph) Disconnect(e *Edge) error {
	if e == nil {
		return corerr.ErrInvalidArgument
	}

	g.mu.Lock()
	idx := slices.Index(g.edges, e)
	if idx < 0 {
		g.mu.Unlock()
		return corerr.ErrInvalidArgument
	}
	g.edges = slices.Delete(g.edges, idx, idx+1)
	g.mu.Unlock()

	e.src.mu.Lock()
	if i := slices.Index(e.src.outs[e.port], e); i >= 0 {
		e.src.outs[e.port] = slices.Delete(e.src.outs[e.port], i, i+1)
	}
	e.src.mu.Unlock()

	e.close()
	return nil
}

// RemoveNode removes n from the graph. It is rejected, per the data
// model's invariant, while n still has any outbound edge.
func (g *Graph) RemoveNode(n *Node) error {
	if n == nil {
		return corerr.ErrInvalidArgument
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, port := range n.outs {
		if len(port) > 0 {
			return corerr.ErrStateViolation
		}
	}

	idx := slices.Index(g.nodes, n)
	if idx < 0 {
		return corerr.ErrInvalidArgument
	}
	g.nodes = slices.Delete(g.nodes, idx, idx+1)
	return nil
}

// Push injects item directly into n's inbox, bypassing any edge.
func (g *Graph) Push(n *Node, item any) error {
	if n == nil {
		return corerr.ErrInvalidArgument
	}
	n.inbox.push(item)
	return nil
}

// Start launches exactly poolSize worker goroutines draining node
// inboxes. Starting an already-running graph is a state violation.
func (g *Graph) Start() error {
	if !g.running.CompareAndSwap(false, true) {
		return corerr.ErrStateViolation
	}
	g.pool = workerpool.Start(g.poolSize, func(ctx context.Context, workerID int) error {
		g.runWorker(ctx)
		return nil
	})
	return nil
}

// runWorker repeatedly scans every node for a ready inbox item, invoking
// its handler when found; it backs off briefly after a pass that finds
// nothing, and exits once the graph is stopped or ctx is canceled.
func (g *Graph) runWorker(ctx context.Context) {
	for {
		if ctx.Err() != nil || !g.running.Load() {
			return
		}

		g.mu.Lock()
		nodes := append([]*Node(nil), g.nodes...)
		g.mu.Unlock()

		found := false
		for _, n := range nodes {
			item, ok := n.inbox.tryPop()
			if !ok {
				continue
			}
			found = true
			g.runHandler(ctx, n, item)

			if ctx.Err() != nil {
				return
			}
		}

		if !found {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// runHandler invokes n's handler, recovering a panic so one misbehaving
// node can't take down the whole worker pool.
func (g *Graph) runHandler(ctx context.Context, n *Node, item any) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Warn().Uint64("node", n.id).Interface("panic", r).Msg("dataflow: handler panic recovered")
		}
	}()
	emit := func(port int, item any) error { return Emit(n, port, item) }
	if err := n.handler(ctx, item, emit); err != nil {
		g.log.Debug().Uint64("node", n.id).Err(err).Msg("dataflow: handler returned error")
	}
}

// Stop halts all workers and waits for them to exit. Idempotent: calling
// Stop on an already-stopped graph is a no-op returning success.
func (g *Graph) Stop() error {
	if !g.running.CompareAndSwap(true, false) {
		return nil
	}
	if g.pool != nil {
		g.pool.Stop()
	}
	return nil
}

// NodeCount reports the number of nodes currently in the graph.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// EdgeCount reports the number of edges currently in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edges)
}

// IsRunning reports whether Start has been called without a matching
// Stop.
func (g *Graph) IsRunning() bool { return g.running.Load() }
