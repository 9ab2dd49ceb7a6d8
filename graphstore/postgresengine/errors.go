package postgresengine

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateUniqueViolation      = "23505"
)

// classifyError maps driver errors of pgx and lib/pq onto the graphstore error classes.
// Errors that belong to no class are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return errors.Join(graphstore.ErrWriteConflict, err)
	case sqlStateForeignKeyViolation:
		return errors.Join(graphstore.ErrRecordMissing, err)
	case sqlStateUniqueViolation:
		return errors.Join(graphstore.ErrUniqueViolation, err)
	default:
		return err
	}
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

// errorType extracts a label for metrics and spans.
func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, graphstore.ErrWriteConflict):
		return "write_conflict"
	case errors.Is(err, graphstore.ErrRecordMissing):
		return "record_missing"
	case errors.Is(err, graphstore.ErrUniqueViolation):
		return "unique_violation"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "database_error"
	}
}
