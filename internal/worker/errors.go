package worker

import (
	"errors"
	"fmt"
)

// ChannelErrorCode categorizes channel-level failures.
type ChannelErrorCode string

const (
	// ErrCodeCancelled indicates the request was rejected by an explicit
	// Cancel call. Callers typically suppress user-visible reporting.
	ErrCodeCancelled ChannelErrorCode = "CANCELLED"

	// ErrCodeCrashed indicates the compute unit terminated abnormally.
	// The channel resets; the next call re-initializes.
	ErrCodeCrashed ChannelErrorCode = "CRASHED"

	// ErrCodeInitFailed indicates the unit factory could not produce a
	// working unit (missing binary, bad environment).
	ErrCodeInitFailed ChannelErrorCode = "INIT_FAILED"

	// ErrCodeClosed indicates the channel was permanently shut down.
	ErrCodeClosed ChannelErrorCode = "CLOSED"
)

// ChannelError is raised for failures of the channel itself, as opposed
// to compile failures which are normal Results carrying diagnostics.
type ChannelError struct {
	Code    ChannelErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ChannelError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is a channel cancellation.
// Uses errors.As to handle wrapped errors.
func IsCancelled(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce) && ce.Code == ErrCodeCancelled
}

// IsCrashed reports whether err is a unit crash.
func IsCrashed(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce) && ce.Code == ErrCodeCrashed
}

// IsClosed reports whether err is a permanent-shutdown rejection.
func IsClosed(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce) && ce.Code == ErrCodeClosed
}
