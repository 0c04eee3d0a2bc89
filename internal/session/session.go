package session

import (
	"context"
	"errors"
)

// ErrClosed is returned when a session is used after Close.
var ErrClosed = errors.New("session: closed")

// Session is a unit of work bound to a single task. Implementations must be
// safe for use by one goroutine at a time; callers hand sessions between
// goroutines, they never share one concurrently.
type Session interface {
	// ID identifies the session in committed entries.
	ID() string

	// Put stages a change. Staged changes are not visible until Commit.
	Put(key, value string) error

	// Pending reports the number of staged, uncommitted changes.
	Pending() int

	// Commit persists all staged changes.
	Commit(ctx context.Context) error

	// Close discards uncommitted changes and releases the session.
	// Calling Close more than once returns nil.
	Close() error
}

// Source establishes sessions.
type Source interface {
	Acquire(ctx context.Context) (Session, error)
}
