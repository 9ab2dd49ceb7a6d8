package graphstore

import (
	"context"
	"errors"
)

// ErrWriteConflict is returned when a commit collides with a concurrent transaction.
var ErrWriteConflict = errors.New("write conflict, the transaction must be redone")

// ErrRecordMissing is returned when a mutation references a vertex that no longer exists.
var ErrRecordMissing = errors.New("record missing, the referenced vertex does not exist")

// ErrNilDatabaseConnection is returned when an engine is created without a database connection.
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")

// ErrEmptyDataDir is returned when an embedded engine is created without a data directory.
var ErrEmptyDataDir = errors.New("empty data directory supplied")

// ErrEmptyTableName is returned when an empty table name is configured.
var ErrEmptyTableName = errors.New("empty table name supplied")

// ErrEngineNotStarted is returned when a session is requested from an engine that is shut down.
var ErrEngineNotStarted = errors.New("engine is not started")

// ErrEngineAlreadyStarted is returned when Startup is called on a running engine.
var ErrEngineAlreadyStarted = errors.New("engine is already started")

// ErrSessionsOpen is returned when Shutdown is called while sessions are still open.
var ErrSessionsOpen = errors.New("engine has open sessions")

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("session is closed")

// ErrInvalidHandle is returned when a zero value handle is passed to a session.
var ErrInvalidHandle = errors.New("invalid handle supplied")

// IsTransient reports whether err belongs to an error class that is resolved by redoing the unit of work.
func IsTransient(err error) bool {
	return errors.Is(err, ErrWriteConflict) || errors.Is(err, ErrRecordMissing)
}

// ErrUniqueViolation is returned when a lookup property value is already taken by another vertex.
var ErrUniqueViolation = errors.New("lookup property value is already taken")

// Purger is implemented by engines that can drop all stored vertices and edges.
type Purger interface {
	Purge(ctx context.Context) error
}
