package stream

import (
	"sync"
	"time"

	"github.com/coreflow/corert/internal/eventloop"
)

// Timer emits a null sentinel every period, driven by loop. If count > 0,
// the stream completes after exactly count fires (a one-shot timer when
// count == 1); count <= 0 runs indefinitely.
func Timer(loop *eventloop.Loop, period time.Duration, count int) *Stream[struct{}] {
	out := New[struct{}](nil)

	repeat := period
	if count == 1 {
		repeat = 0
	}

	var mu sync.Mutex
	fires := 0
	finished := false
	var regID eventloop.RegID

	cb := func() {
		mu.Lock()
		if finished {
			mu.Unlock()
			return
		}
		fires++
		done := count > 0 && fires >= count
		finished = done
		id := regID
		mu.Unlock()

		_ = out.EmitNext(struct{}{})
		if done {
			if id != 0 {
				_ = loop.Unregister(id)
			}
			_ = out.EmitComplete()
		}
	}

	id, err := loop.RegisterTimer(time.Now().Add(period), repeat, cb)
	if err != nil {
		_ = out.EmitError(0)
		return out
	}
	mu.Lock()
	regID = id
	mu.Unlock()
	return out
}

// FromFD emits a null sentinel every time fd becomes ready per mask,
// driven by loop's poller.
func FromFD(loop *eventloop.Loop, fd int, mask eventloop.IOMask) *Stream[struct{}] {
	out := New[struct{}](nil)
	_, err := loop.RegisterIO(fd, mask, func(eventloop.IOMask) {
		_ = out.EmitNext(struct{}{})
	})
	if err != nil {
		_ = out.EmitError(0)
	}
	return out
}
