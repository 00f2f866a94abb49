package eventloop

import "errors"

// Sentinel errors: plain errors.New values, wrapped with fmt.Errorf at call
// sites when context is useful.
var (
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")
	ErrLoopTerminated     = errors.New("eventloop: loop has been terminated")
	ErrLoopNotRunning     = errors.New("eventloop: loop is not running")
	ErrRegIDNotFound      = errors.New("eventloop: registration id not found")
	ErrIOUnsupported      = errors.New("eventloop: fd registration unsupported on this platform")
	ErrInvalidPeriod      = errors.New("eventloop: timer period must be positive for a repeating timer")
)
