package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an email has no current row.
var ErrNotFound = errors.New("email not found")

// StorageError wraps a backend failure with the operation and email id it
// happened on.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s email %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *StorageError, or nil when err is nil. Errors that
// already are storage errors are returned unchanged.
func Wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, ID: id, Err: err}
}
