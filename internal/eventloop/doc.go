// Package eventloop is the in-process stand-in for the platform event loop
// that the core concurrency runtime treats as an external collaborator: it
// registers timer and (best-effort, Linux-only) file descriptor readiness
// callbacks and invokes them from a single dedicated goroutine.
//
// It is deliberately small: a CAS-driven run state, a container/heap timer
// queue, and a level-triggered poller behind a tiny interface so platforms
// without epoll still build (RegisterIO simply reports unsupported).
package eventloop
