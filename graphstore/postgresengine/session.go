package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/postgresengine/internal/adapters"
)

// session runs all statements inside one lazily started REPEATABLE READ transaction.
type session struct {
	engine *Engine
	db     adapters.DBAdapter

	tx      adapters.DBTx
	closed  bool
	release sync.Once
}

func (s *session) transaction(ctx context.Context) (adapters.DBTx, error) {
	if s.closed {
		return nil, graphstore.ErrSessionClosed
	}

	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx)
		if err != nil {
			return nil, classifyError(err)
		}
		s.tx = tx
	}

	return s.tx, nil
}

// exec runs a statement in the session transaction and returns the affected row count.
func (s *session) exec(ctx context.Context, action, sqlQuery string, buildErr error) (int64, error) {
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr)
		return 0, buildErr
	}

	tx, err := s.transaction(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := tx.Exec(ctx, sqlQuery)
	if err != nil {
		err = classifyError(err)
		s.engine.recordErrorMetrics(ctx, action, err)
		if !graphstore.IsTransient(err) {
			s.engine.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		}
		return 0, err
	}
	s.engine.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	return result.RowsAffected()
}

// CreateVertex inserts a vertex with the given label.
func (s *session) CreateVertex(ctx context.Context, label graphstore.TypeLabel) (graphstore.VertexHandle, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return graphstore.VertexHandle{}, fmt.Errorf("generate vertex id: %w", err)
	}

	sqlQuery, buildErr := s.engine.queries.insertVertex(id, label)
	if _, err = s.exec(ctx, logActionInsertVertex, sqlQuery, buildErr); err != nil {
		return graphstore.VertexHandle{}, err
	}

	return graphstore.VertexHandle{ID: id, Label: label}, nil
}

// CreateEdge inserts an edge. A missing endpoint surfaces as graphstore.ErrRecordMissing through the foreign key.
func (s *session) CreateEdge(
	ctx context.Context,
	label graphstore.TypeLabel,
	from, to graphstore.VertexHandle,
) (graphstore.EdgeHandle, error) {
	if from.IsZero() || to.IsZero() {
		return graphstore.EdgeHandle{}, graphstore.ErrInvalidHandle
	}

	id, err := uuid.NewV7()
	if err != nil {
		return graphstore.EdgeHandle{}, fmt.Errorf("generate edge id: %w", err)
	}

	sqlQuery, buildErr := s.engine.queries.insertEdge(id, label, from.ID, to.ID)
	if _, err = s.exec(ctx, logActionInsertEdge, sqlQuery, buildErr); err != nil {
		return graphstore.EdgeHandle{}, err
	}

	return graphstore.EdgeHandle{ID: id, Label: label, From: from.ID, To: to.ID}, nil
}

// SetProperty merges an integer property into the vertex's jsonb properties.
func (s *session) SetProperty(ctx context.Context, v graphstore.VertexHandle, key string, value int64) error {
	if v.IsZero() {
		return graphstore.ErrInvalidHandle
	}

	sqlQuery, buildErr := s.engine.queries.setProperty(v.ID, key, value)
	affected, err := s.exec(ctx, logActionSetProperty, sqlQuery, buildErr)
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%w: vertex %s", graphstore.ErrRecordMissing, v.ID)
	}

	return nil
}

// FindByProperty resolves a vertex through jsonb containment on its properties.
func (s *session) FindByProperty(
	ctx context.Context,
	scope graphstore.TypeLabel,
	key string,
	value int64,
) (graphstore.VertexHandle, bool, error) {
	sqlQuery, err := s.engine.queries.findByProperty(scope, key, value)
	if err != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, err)
		return graphstore.VertexHandle{}, false, err
	}

	tx, err := s.transaction(ctx)
	if err != nil {
		return graphstore.VertexHandle{}, false, err
	}

	start := time.Now()
	rows, err := tx.Query(ctx, sqlQuery)
	if err != nil {
		err = classifyError(err)
		s.engine.recordErrorMetrics(ctx, logActionFindByProperty, err)
		return graphstore.VertexHandle{}, false, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return graphstore.VertexHandle{}, false, classifyError(rows.Err())
	}

	var rawID, label string
	if err = rows.Scan(&rawID, &label); err != nil {
		return graphstore.VertexHandle{}, false, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return graphstore.VertexHandle{}, false, fmt.Errorf("parse vertex id: %w", err)
	}

	s.engine.logQueryWithDuration(ctx, sqlQuery, logActionFindByProperty, time.Since(start))

	return graphstore.VertexHandle{ID: id, Label: graphstore.TypeLabel(label)}, true, nil
}

// DeleteVertex deletes a vertex. Incident edges are removed by the cascading foreign keys.
func (s *session) DeleteVertex(ctx context.Context, v graphstore.VertexHandle) error {
	if v.IsZero() {
		return graphstore.ErrInvalidHandle
	}

	sqlQuery, buildErr := s.engine.queries.deleteVertex(v.ID)
	affected, err := s.exec(ctx, logActionDeleteVertex, sqlQuery, buildErr)
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("%w: vertex %s", graphstore.ErrRecordMissing, v.ID)
	}

	return nil
}

// Commit commits the session transaction.
func (s *session) Commit(ctx context.Context) error {
	if s.closed {
		return graphstore.ErrSessionClosed
	}

	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil

	start := time.Now()
	err := classifyError(tx.Commit(ctx))
	duration := time.Since(start)

	switch {
	case err == nil:
		s.engine.recordCommit(ctx, duration, statusSuccess)
		return nil

	case errors.Is(err, graphstore.ErrWriteConflict):
		s.engine.recordCommit(ctx, duration, statusConflict)
		s.engine.logWarn(ctx, logMsgWriteConflict, logAttrError, err.Error())
		return err

	default:
		s.engine.recordCommit(ctx, duration, statusError)
		s.engine.recordErrorMetrics(ctx, logActionCommit, err)
		return err
	}
}

// Rollback aborts the session transaction.
func (s *session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil

	return tx.Rollback(ctx)
}

// Close rolls back pending work and releases the session. It is safe to call more than once.
func (s *session) Close(ctx context.Context) error {
	err := s.Rollback(ctx)
	s.closed = true
	s.release.Do(s.engine.releaseSession)

	return err
}

var _ graphstore.Session = (*session)(nil)
