package recordkv

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidNamespace is returned by New for an empty namespace.
	ErrInvalidNamespace = errors.New("recordkv: namespace must be a non-empty string")

	// ErrInvalidArea is returned by New for a storage area other than
	// "local", "sync" or "".
	ErrInvalidArea = errors.New("recordkv: storage area must be \"local\", \"sync\" or unset")

	// ErrInvalidMethod is returned by Sync for an unknown method.
	ErrInvalidMethod = errors.New("recordkv: invalid method")

	// ErrInvalidTarget is returned by Sync for a nil target.
	ErrInvalidTarget = errors.New("recordkv: invalid target")

	// ErrClosed is returned by Sync after Close.
	ErrClosed = errors.New("recordkv: adapter closed")

	// ErrMissingID is reported when no record of the target has an id.
	ErrMissingID = errors.New("recordkv: no record with an id")

	// ErrNotFound is reported when a record (or every record of a delete)
	// does not exist.
	ErrNotFound = errors.New("recordkv: record not found")

	// ErrReservedID is reported when a record id equals the namespace, which
	// is the key of the record index.
	ErrReservedID = errors.New("recordkv: record id collides with the namespace")

	// ErrWatchUnsupported is returned by Watch when the storage area cannot
	// report changes.
	ErrWatchUnsupported = errors.New("recordkv: store does not support watching")
)

// BatchError aggregates the backend errors of an operation that issued
// several calls.
//
// The individual errors can be inspected with errors.Is and errors.As.
type BatchError struct {
	Errs []error
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "recordkv: " + strings.Join(msgs, "; ")
}

func (e *BatchError) Unwrap() []error { return e.Errs }

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &BatchError{Errs: errs}
}
