package errors

import (
	stdErrors "errors"
	"fmt"
)

// CacheError wraps a failure of the response cache backing store.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError creates a new CacheError for the given operation
func NewCacheError(op string, err error) *CacheError {
	return &CacheError{Op: op, Err: err}
}

// IsCacheError checks if an error is a CacheError
func IsCacheError(err error) bool {
	var target *CacheError
	return stdErrors.As(err, &target)
}
