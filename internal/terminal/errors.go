package terminal

import (
	"errors"
	"fmt"
)

// Error kinds returned by registry and session operations. Callers match them
// with errors.Is; the concrete error is always an *OpError.
var (
	ErrSessionNotFound = errors.New("terminal session not found")
	ErrInvalidSegment  = errors.New("invalid segment id")
	ErrPtyOpen         = errors.New("failed to open pty")
	ErrSpawnFailure    = errors.New("failed to spawn shell")
	ErrIO              = errors.New("pty i/o error")
	ErrInvalidSize     = errors.New("invalid terminal size")
)

// OpError describes a failed operation on one segment.
type OpError struct {
	Op      string
	Segment string
	Kind    error
	Err     error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Segment, e.Kind)
	}
	return fmt.Sprintf("%s %q: %v: %v", e.Op, e.Segment, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying OS error.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opError(op, segment string, kind, err error) *OpError {
	return &OpError{Op: op, Segment: segment, Kind: kind, Err: err}
}

// KindOf returns the error kind carried by err, or nil if err is not a
// terminal operation error.
func KindOf(err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return nil
}
