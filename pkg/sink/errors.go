package sink

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRequestAborted signals that the client disconnected. It is surfaced by
// ServerSink.CheckAborted and is expected to unwind the producer's streaming
// loop entirely; it is never mapped to a response because the connection is
// already gone.
var ErrRequestAborted = errors.New("request aborted")

// ErrResponseCommitted is returned when a second terminal operation is
// invoked on a sink whose exchange has already been finalized.
var ErrResponseCommitted = errors.New("response already committed")

// StatusError is a producer error carrying protocol status semantics. Sinks
// map it to the corresponding status code; any error that is not a
// StatusError (and not ErrRequestAborted) maps to a generic 500.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}
	return e.Message
}

// NewStatusError builds a StatusError with the given code and formatted
// message.
func NewStatusError(code int, format string, args ...any) *StatusError {
	return &StatusError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error kinds the emission core recognizes. NotModified and RequestAborted
// are the distinguished conditions of the core contract; the rest mirror the
// failures content producers commonly raise.
func NotModified(format string, args ...any) *StatusError {
	return NewStatusError(http.StatusNotModified, format, args...)
}

func NotFound(format string, args ...any) *StatusError {
	return NewStatusError(http.StatusNotFound, format, args...)
}

func Forbidden(format string, args ...any) *StatusError {
	return NewStatusError(http.StatusForbidden, format, args...)
}

func NotAllowed(format string, args ...any) *StatusError {
	return NewStatusError(http.StatusMethodNotAllowed, format, args...)
}

func ServiceUnavailable(format string, args ...any) *StatusError {
	return NewStatusError(http.StatusServiceUnavailable, format, args...)
}

func InternalError(format string, args ...any) *StatusError {
	return NewStatusError(http.StatusInternalServerError, format, args...)
}

// StatusOf maps an error to the protocol status a sink should announce.
// Unrecognized errors map to 500 Internal Server Error.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return http.StatusInternalServerError
}

// IsNotModified reports whether err is the conditional-request short-circuit.
func IsNotModified(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotModified
}

// IsAborted reports whether err signals a client disconnect.
func IsAborted(err error) bool {
	return errors.Is(err, ErrRequestAborted)
}
