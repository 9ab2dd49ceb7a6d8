package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

func Test_ClassifyError_MapsSQLStates(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
		label    string
	}{
		{"pgx serialization failure", &pgconn.PgError{Code: "40001"}, graphstore.ErrWriteConflict, "write_conflict"},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, graphstore.ErrWriteConflict, "write_conflict"},
		{"pgx foreign key violation", &pgconn.PgError{Code: "23503"}, graphstore.ErrRecordMissing, "record_missing"},
		{"pq serialization failure", &pq.Error{Code: "40001"}, graphstore.ErrWriteConflict, "write_conflict"},
		{"pq foreign key violation", &pq.Error{Code: "23503"}, graphstore.ErrRecordMissing, "record_missing"},
		{"pq unique violation", &pq.Error{Code: "23505"}, graphstore.ErrUniqueViolation, "unique_violation"},
		{"wrapped pgx error", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40001"}), graphstore.ErrWriteConflict, "write_conflict"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyError(tc.err)

			assert.ErrorIs(t, classified, tc.expected)
			assert.ErrorIs(t, classified, tc.err, "the driver error must stay reachable")
			assert.Equal(t, tc.label, errorType(classified))
		})
	}
}

func Test_ClassifyError_LeavesOtherErrorsUntouched(t *testing.T) {
	plain := errors.New("connection reset")
	syntax := &pgconn.PgError{Code: "42601"}

	assert.Nil(t, classifyError(nil))
	assert.Same(t, plain, classifyError(plain))
	assert.Same(t, syntax, classifyError(syntax))
	assert.False(t, graphstore.IsTransient(classifyError(syntax)))
	assert.Equal(t, "database_error", errorType(plain))
	assert.Equal(t, "context_canceled", errorType(context.Canceled))
}
