package errors

import (
	stdErrors "errors"
	"fmt"
)

// ConflictError means reconciliation would collide with a different
// existing entity. It is raised before any write.
type ConflictError struct {
	Entity     string
	ExistingID string
	Message    string
}

func (e *ConflictError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("%s conflict: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("%s conflict with %s: %s", e.Entity, e.ExistingID, e.Message)
}

// NewConflictError creates a new ConflictError
func NewConflictError(entity, existingID, message string) *ConflictError {
	return &ConflictError{Entity: entity, ExistingID: existingID, Message: message}
}

// IsConflictError checks if an error is a ConflictError
func IsConflictError(err error) bool {
	var target *ConflictError
	return stdErrors.As(err, &target)
}

// StorageConflictError is raised when the store aborts a transaction because
// of a concurrent conflicting write (serialization failure, deadlock or a
// unique constraint lost to another writer).
type StorageConflictError struct {
	Err error
}

func (e *StorageConflictError) Error() string {
	if e.Err == nil {
		return "storage conflict"
	}
	return fmt.Sprintf("storage conflict: %v", e.Err)
}

func (e *StorageConflictError) Unwrap() error {
	return e.Err
}

// NewStorageConflictError wraps the underlying store error
func NewStorageConflictError(err error) *StorageConflictError {
	return &StorageConflictError{Err: err}
}

// IsStorageConflictError checks if an error is a StorageConflictError
func IsStorageConflictError(err error) bool {
	var target *StorageConflictError
	return stdErrors.As(err, &target)
}
