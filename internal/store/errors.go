package store

import (
	"errors"
	"fmt"
)

// Error is a failure reported by, or while talking to, the backend.
// Error() returns the backend's own message so it can be shown to the caller verbatim.
type Error struct {
	Op      string // "select", "count", "insert", "user"
	Table   Table
	Status  int    // HTTP status for the REST backend, 0 otherwise
	Code    string // backend error code (PostgREST / SQLSTATE) when known
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.Table)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err is, or wraps, a *Error.
func IsStoreError(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr)
}
