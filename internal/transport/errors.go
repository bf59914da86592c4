package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Send when the connection is not in the Open state.
	ErrNotOpen = errors.New("connection is not open")

	// ErrAlreadyOpened is returned when Open is called twice on one Connection.
	// A closed or errored connection is replaced, never reopened.
	ErrAlreadyOpened = errors.New("connection already opened")
)

// Error is a transport failure: refused connection, abnormal close, protocol
// error, or a send on a connection that is not open.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
