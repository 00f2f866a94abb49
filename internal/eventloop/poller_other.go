//go:build !linux

package eventloop

// On non-Linux platforms there is no bundled poller; RegisterIO reports
// ErrIOUnsupported. Timers work identically everywhere.
func newIOPoller(chan<- ioEvent) ioPoller { return nil }
