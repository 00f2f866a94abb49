// Package restartwindow implements supervisor restart-intensity tracking:
// a sliding window per child that permits or denies a restart attempt based
// on how many restarts have already happened recently.
//
// Unlike a general multi-rate sliding-window limiter backed by a sorted
// ring buffer of event timestamps, a supervisor only ever needs one
// (maxRestarts, window) budget per child, so this tracks a single
// reset-on-expiry counter instead.
package restartwindow

import "time"

// timeNow is overridable in tests for deterministic clock control.
var timeNow = time.Now

// Window tracks restart attempts for a single child within a single
// (maxRestarts, window) budget.
type Window struct {
	maxRestarts int
	window      time.Duration

	count          int
	firstRestartAt time.Time
}

// New creates a restart window. A non-positive maxRestarts means
// unlimited restarts.
func New(maxRestarts int, window time.Duration) *Window {
	return &Window{maxRestarts: maxRestarts, window: window}
}

// Allow records a restart attempt at the current time and reports whether
// it is within budget.
//
//   - If this is the first attempt, or the window since the first attempt
//     in the current run has elapsed, the window resets: count becomes 1
//     and the attempt is permitted.
//   - Otherwise, the attempt is permitted only if it would not push the
//     count past maxRestarts.
func (w *Window) Allow() bool {
	if w.maxRestarts <= 0 {
		return true
	}

	now := timeNow()

	if w.count == 0 || now.Sub(w.firstRestartAt) > w.window {
		w.count = 1
		w.firstRestartAt = now
		return true
	}

	if w.count+1 > w.maxRestarts {
		return false
	}

	w.count++
	return true
}

// Reset clears the window, e.g. after a child has run successfully for
// long enough that past restarts should no longer count against it.
func (w *Window) Reset() {
	w.count = 0
	w.firstRestartAt = time.Time{}
}
