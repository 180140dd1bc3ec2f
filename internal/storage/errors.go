package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every failure of the persistence layer
	ErrStorage = errors.New("storage failure")

	// ErrNotInitialized is returned when the evaluations table does not exist yet
	ErrNotInitialized = errors.New("evaluation store not initialized")

	// ErrUnsupportedDriver is returned for an unknown storage driver
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)

// StorageError wraps a persistence failure so callers can tell it apart from
// input validation errors.
type StorageError struct {
	Op  string
	Err error
}

// Error implements error
func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true for every StorageError
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
