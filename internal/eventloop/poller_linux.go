//go:build linux

package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller backs ioPoller with epoll: one goroutine blocked in
// EpollWait, events forwarded to the loop goroutine over a channel rather
// than dispatched inline, since the loop goroutine (not the poller) owns
// all callback state.
type epollPoller struct {
	epfd int

	mu      sync.Mutex
	fdOf    map[RegID]int
	idOf    map[int]RegID
	maskOf  map[int]IOMask
	closeCh chan struct{}
	events  chan<- ioEvent
}

func newIOPoller(events chan<- ioEvent) ioPoller {
	return &epollPoller{
		fdOf:    make(map[RegID]int),
		idOf:    make(map[int]RegID),
		maskOf:  make(map[int]IOMask),
		closeCh: make(chan struct{}),
		events:  events,
	}
}

func (p *epollPoller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	go p.run()
	return nil
}

func (p *epollPoller) close() error {
	close(p.closeCh)
	return unix.Close(p.epfd)
}

func (p *epollPoller) registerFD(fd int, mask IOMask, id RegID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fdOf[id] = fd
	p.idOf[fd] = id
	p.maskOf[fd] = mask

	ev := &unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) unregisterFD(id RegID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fd, ok := p.fdOf[id]
	if !ok {
		return ErrRegIDNotFound
	}
	delete(p.fdOf, id)
	delete(p.idOf, fd)
	delete(p.maskOf, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) run() {
	var buf [64]unix.EpollEvent
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}

		n, err := unix.EpollWait(p.epfd, buf[:], 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(buf[i].Fd)
			p.mu.Lock()
			id, ok := p.idOf[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case p.events <- ioEvent{id: id, mask: fromEpollEvents(buf[i].Events)}:
			case <-p.closeCh:
				return
			}
		}
	}
}

func toEpollEvents(mask IOMask) uint32 {
	var e uint32
	if mask&IORead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&IOWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) IOMask {
	var mask IOMask
	if e&unix.EPOLLIN != 0 {
		mask |= IORead
	}
	if e&unix.EPOLLOUT != 0 {
		mask |= IOWrite
	}
	if e&unix.EPOLLERR != 0 {
		mask |= IOError
	}
	if e&unix.EPOLLHUP != 0 {
		mask |= IOHangup
	}
	return mask
}
