package workspace

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkspaceNotFound means an operation referenced an unregistered id.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrBusy means a transition was requested while one is in flight.
	ErrBusy = errors.New("workspace transition already in progress")
	// ErrNoPendingTransition means commit or abort was called while idle.
	ErrNoPendingTransition = errors.New("no workspace transition in progress")
)

// Error records the operation and workspace id a sentinel error refers to.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
