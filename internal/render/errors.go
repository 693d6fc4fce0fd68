package render

import (
	"errors"
	"fmt"

	"github.com/fred913/scadstudio/internal/diag"
)

// ErrorCode categorizes render-service failures.
type ErrorCode string

const (
	// ErrCodeCompileFailed indicates the compute unit ran but the source
	// did not compile; Diagnostics carries the error list.
	ErrCodeCompileFailed ErrorCode = "COMPILE_FAILED"

	// ErrCodeNoOutput indicates the compute unit produced zero bytes with
	// no error diagnostics to explain why.
	ErrCodeNoOutput ErrorCode = "NO_OUTPUT"

	// ErrCodeCancelled indicates an explicit Cancel rejected the request.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeChannel indicates a transport-level failure (unit crash,
	// failed initialization). Recoverable: the next call re-initializes.
	ErrCodeChannel ErrorCode = "CHANNEL"

	// ErrCodeDisposed indicates the service was permanently shut down.
	ErrCodeDisposed ErrorCode = "DISPOSED"

	// ErrCodeBadRequest indicates an invalid view mode or export format.
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
)

// ServiceError is the typed error raised by the render service. The core
// never logs to a UI; callers classify errors with the Is helpers and
// decide presentation themselves.
type ServiceError struct {
	Code        ErrorCode
	Message     string
	Diagnostics []diag.Diagnostic
	Err         error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Diagnostics) > 0 {
		msg += "\n" + diag.FormatList(e.Diagnostics)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Code == code
}

// IsCompileFailed reports whether err carries compile diagnostics.
func IsCompileFailed(err error) bool { return hasCode(err, ErrCodeCompileFailed) }

// IsNoOutput reports whether err is a generic empty-output failure.
func IsNoOutput(err error) bool { return hasCode(err, ErrCodeNoOutput) }

// IsCancelled reports whether err stems from an intentional Cancel.
// Callers use this to suppress user-visible error reporting.
func IsCancelled(err error) bool { return hasCode(err, ErrCodeCancelled) }

// IsDisposed reports whether err means the service is permanently gone.
func IsDisposed(err error) bool { return hasCode(err, ErrCodeDisposed) }
