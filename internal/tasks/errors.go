package tasks

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get for an unknown id.
var ErrNotFound = errors.New("task not found")

// StoreReadError wraps a failed List/Query against the record store.
type StoreReadError struct {
	Op  string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("store read %s: %v", e.Op, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// StoreWriteError is reported once per aggregate operation, even when some of
// the constituent single-document writes succeeded.
type StoreWriteError struct {
	Op          string
	AggregateID string
	Err         error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s %s: %v", e.Op, e.AggregateID, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// GenerationError covers a failed model call as well as an unusable response.
type GenerationError struct {
	Kind string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError blocks a submission before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
