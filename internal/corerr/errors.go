// Package corerr holds the sentinel errors shared by the core's four
// subsystems, so stream/dataflow/supervisor all report the same error
// kinds through errors.Is rather than each defining their own.
package corerr

import "errors"

var (
	ErrInvalidArgument   = errors.New("corert: invalid argument")
	ErrStateViolation    = errors.New("corert: operation invalid in current state")
	ErrResourceExhausted = errors.New("corert: resource exhausted")
	ErrChannelClosed     = errors.New("corert: channel closed")
	ErrTimeout           = errors.New("corert: deadline exceeded")
	ErrIntensityExceeded = errors.New("corert: restart intensity exceeded")
)
