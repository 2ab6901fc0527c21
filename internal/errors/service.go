package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
)

// ServiceError is returned when the bibliographic provider could not be
// reached, timed out, answered with a non-2xx status or sent a payload that
// does not decode.
type ServiceError struct {
	URL        string
	StatusCode int
	Payload    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Payload != "":
		return fmt.Sprintf("provider returned HTTP %d for %s: %s", e.StatusCode, e.URL, e.Payload)
	case e.StatusCode != 0:
		return fmt.Sprintf("provider returned HTTP %d for %s", e.StatusCode, e.URL)
	case e.Err != nil:
		return fmt.Sprintf("provider request %s failed: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("provider request %s failed", e.URL)
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or network timeout.
func (e *ServiceError) Timeout() bool {
	if e.Err == nil {
		return false
	}
	if stdErrors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stdErrors.As(e.Err, &netErr) && netErr.Timeout()
}

// NewServiceError wraps a transport or decode failure for url
func NewServiceError(url string, err error) *ServiceError {
	return &ServiceError{URL: url, Err: err}
}

// NewServiceStatusError records a non-2xx response together with its body
func NewServiceStatusError(url string, status int, payload string) *ServiceError {
	return &ServiceError{URL: url, StatusCode: status, Payload: payload}
}

// IsServiceError checks if an error is a ServiceError
func IsServiceError(err error) bool {
	var target *ServiceError
	return stdErrors.As(err, &target)
}

// AsServiceError extracts the ServiceError from an error chain
func AsServiceError(err error) (*ServiceError, bool) {
	var target *ServiceError
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}
