// Package upstream holds the pieces shared by the third-party API clients:
// the failure type the proxy handlers branch on, and the pacer that spaces
// out rate-limit-sensitive calls.
package upstream

import (
	"errors"
	"fmt"
)

// Error reports a failed upstream call. Any non-nil error returned by a
// client means the proxy should respond with a fallback payload; Error
// additionally carries the upstream status for logging.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.StatusCode)
	}
	return "upstream: " + e.Message
}

// Errorf builds an Error with a formatted message. statusCode may be 0 for
// transport-level failures that never produced a response.
func Errorf(statusCode int, format string, args ...any) *Error {
	return &Error{StatusCode: statusCode, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from err when present.
func As(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
