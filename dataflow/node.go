package dataflow

import (
	"context"
	"sync"

	"github.com/coreflow/corert/internal/corerr"
)

// EmitFunc is bound to a node by the worker loop and passed to Handler; it
// fans an item out to every edge on the given outbound port.
type EmitFunc func(port int, item any) error

// Handler processes one item taken from a node's inbox. It must either
// consume item or forward it via emit (or both); the graph does not free
// items a handler silently drops.
type Handler func(ctx context.Context, item any, emit EmitFunc) error

// Node holds a handler, its outbound ports, and a unified inbound inbox
// fed both by external Push calls and by every inbound edge.
type Node struct {
	id      uint64
	handler Handler
	userCtx any
	inbox   *inbox

	mu   sync.Mutex
	outs [][]*Edge
}

// Context returns the arbitrary user context passed to AddNode.
func (n *Node) Context() any { return n.userCtx }

// Edge connects one outbound port of a source node to a destination
// node's inbox, via a bounded channel. destroy, if non-nil, is called on
// any item the edge drops instead of forwarding (on teardown, or when a
// fan-out send can't complete because the edge was torn down underneath
// it).
type Edge struct {
	id   uint64
	src  *Node
	port int
	dst  *Node

	ch      chan any
	destroy func(any)

	closeOnce sync.Once
	closeCh   chan struct{}
}

func newEdge(id uint64, src *Node, port int, dst *Node, capacity int, destroy func(any)) *Edge {
	return &Edge{
		id:      id,
		src:     src,
		port:    port,
		dst:     dst,
		ch:      make(chan any, capacity),
		destroy: destroy,
		closeCh: make(chan struct{}),
	}
}

// forward moves items from the edge's bounded channel into dst's inbox
// until the edge is torn down.
func (e *Edge) forward() {
	for {
		select {
		case item, ok := <-e.ch:
			if !ok {
				return
			}
			e.dst.inbox.push(item)
		case <-e.closeCh:
			return
		}
	}
}

// close tears the edge down: forward stops picking up new items, any
// Emit blocked trying to send into it is unblocked onto the destroy path,
// and whatever is still sitting in the channel buffer is drained and
// destroyed.
func (e *Edge) close() {
	e.closeOnce.Do(func() { close(e.closeCh) })
	for {
		select {
		case item, ok := <-e.ch:
			if !ok {
				return
			}
			if e.destroy != nil {
				e.destroy(item)
			}
		default:
			return
		}
	}
}

// Emit fans item out to every outbound edge on node n's port. Each send
// blocks until the edge has room or is torn down; a send that loses the
// race to teardown destroys item instead of delivering it. Partial
// failure does not abort the fan-out: every edge on the port is attempted.
func Emit(n *Node, port int, item any) error {
	if n == nil || port < 0 || port >= len(n.outs) {
		return corerr.ErrInvalidArgument
	}
	n.mu.Lock()
	edges := append([]*Edge(nil), n.outs[port]...)
	n.mu.Unlock()

	for _, e := range edges {
		select {
		case e.ch <- item:
		case <-e.closeCh:
			if e.destroy != nil {
				e.destroy(item)
			}
		}
	}
	return nil
}

// inbox is a node's unbounded FIFO: a mutex-guarded slice rather than a Go
// channel, since the worker loop needs a genuinely non-blocking,
// never-full receive.
type inbox struct {
	mu    sync.Mutex
	items []any
}

func newInbox() *inbox { return &inbox{} }

func (b *inbox) push(item any) {
	b.mu.Lock()
	b.items = append(b.items, item)
	b.mu.Unlock()
}

func (b *inbox) tryPop() (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil, false
	}
	item := b.items[0]
	b.items = b.items[1:]
	return item, true
}
