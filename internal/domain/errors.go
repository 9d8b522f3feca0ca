package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown session or cycle ids.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an operation would violate the
	// single-active-session invariant.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState is returned when an operation is not valid in the
	// session's current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
)

// StorageError marks a session store failure. It is propagated, not
// swallowed, so callers can retry the persist independently.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
