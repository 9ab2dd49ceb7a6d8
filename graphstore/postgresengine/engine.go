package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/postgresengine/internal/adapters"
)

const (
	defaultVertexTableName   = "vertices"
	defaultEdgeTableName     = "edges"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "graphstore operation: "
	logMsgConnectFailed      = "failed to connect to database"
	logMsgBuildQueryFailed   = "failed to build query"
	logMsgDBExecFailed       = "database execution failed"
	logMsgCloseFailed        = "failed to close database connection"
	logMsgShutdownRefused    = "shutdown refused, sessions still open"
	logMsgWriteConflict      = "write conflict detected"
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrDurationMS        = "duration_ms"
	logAttrVertexTable       = "vertex_table"
	logAttrEdgeTable         = "edge_table"
	logAttrOpenSessions      = "open_sessions"
	logActionStartup         = "startup"
	logActionShutdown        = "shutdown"
	logActionPurge           = "purge"
	logActionSchema          = "schema"
	logActionCount           = "count"
	logActionInsertVertex    = "insert vertex"
	logActionSetProperty     = "set property"
	logActionFindByProperty  = "find by property"
	logActionDeleteVertex    = "delete vertex"
	logActionInsertEdge      = "insert edge"
	logActionCommit          = "commit"
)

// SQLDBOpener opens a configured *sql.DB. It is called on every Startup.
type SQLDBOpener func() (*sql.DB, error)

// SQLXOpener opens a configured *sqlx.DB. It is called on every Startup.
type SQLXOpener func() (*sqlx.DB, error)

// connector opens a fresh connection pool and wraps it in an adapter.
type connector func(ctx context.Context) (adapters.DBAdapter, error)

// Engine is a graphstore.Engine on top of a PostgreSQL connection pool.
// Every Startup opens a new pool through the configured connector and Shutdown closes it.
type Engine struct {
	connect         connector
	vertexTable     string
	edgeTable       string
	bootstrapSchema bool

	logger           graphstore.Logger
	contextualLogger graphstore.ContextualLogger
	metricsCollector graphstore.MetricsCollector
	tracingCollector graphstore.TracingCollector

	mu           sync.Mutex
	db           adapters.DBAdapter
	queries      queryBuilder
	openSessions int64
}

// NewEngineFromPGXPoolConfig creates an Engine that opens a pgx.Pool from the given config on Startup.
func NewEngineFromPGXPoolConfig(config *pgxpool.Config, options ...Option) (*Engine, error) {
	if config == nil {
		return nil, graphstore.ErrNilDatabaseConnection
	}

	return newEngine(func(ctx context.Context) (adapters.DBAdapter, error) {
		pool, err := pgxpool.NewWithConfig(ctx, config.Copy())
		if err != nil {
			return nil, err
		}

		return adapters.NewPGXAdapter(pool), nil
	}, options...)
}

// NewEngineFromSQLDB creates an Engine that obtains a sql.DB from open on Startup.
func NewEngineFromSQLDB(open SQLDBOpener, options ...Option) (*Engine, error) {
	if open == nil {
		return nil, graphstore.ErrNilDatabaseConnection
	}

	return newEngine(func(_ context.Context) (adapters.DBAdapter, error) {
		db, err := open()
		if err != nil {
			return nil, err
		}
		if db == nil {
			return nil, graphstore.ErrNilDatabaseConnection
		}

		return adapters.NewSQLAdapter(db), nil
	}, options...)
}

// NewEngineFromSQLX creates an Engine that obtains a sqlx.DB from open on Startup.
func NewEngineFromSQLX(open SQLXOpener, options ...Option) (*Engine, error) {
	if open == nil {
		return nil, graphstore.ErrNilDatabaseConnection
	}

	return newEngine(func(_ context.Context) (adapters.DBAdapter, error) {
		db, err := open()
		if err != nil {
			return nil, err
		}
		if db == nil {
			return nil, graphstore.ErrNilDatabaseConnection
		}

		return adapters.NewSQLXAdapter(db), nil
	}, options...)
}

func newEngine(connect connector, options ...Option) (*Engine, error) {
	e := &Engine{
		connect:     connect,
		vertexTable: defaultVertexTableName,
		edgeTable:   defaultEdgeTableName,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	e.queries = newQueryBuilder(e.vertexTable, e.edgeTable)

	return e, nil
}

// Startup opens a new connection pool, verifies it, and bootstraps the schema if configured.
func (e *Engine) Startup(ctx context.Context) error {
	observer, ctx := e.startLifecycleTracing(ctx, spanNameStartup)

	err := e.startup(ctx)

	observer.finish(err)
	e.recordLifecycle(ctx, logActionStartup, err)

	return err
}

func (e *Engine) startup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return graphstore.ErrEngineAlreadyStarted
	}

	start := time.Now()
	db, err := e.connect(ctx)
	if err != nil {
		e.logError(ctx, logMsgConnectFailed, err)
		return fmt.Errorf("connect: %w", err)
	}

	if _, err = db.Exec(ctx, "SELECT 1"); err != nil {
		e.logError(ctx, logMsgConnectFailed, err)
		return errors.Join(fmt.Errorf("verify connection: %w", err), db.Close())
	}

	if e.bootstrapSchema {
		if err = e.ensureSchema(ctx, db); err != nil {
			return errors.Join(err, db.Close())
		}
	}

	e.db = db
	e.logOperation(ctx, logActionStartup,
		logAttrVertexTable, e.vertexTable,
		logAttrEdgeTable, e.edgeTable,
		logAttrDurationMS, toMilliseconds(time.Since(start)),
	)

	return nil
}

func (e *Engine) ensureSchema(ctx context.Context, db adapters.DBQuerier) error {
	for _, statement := range e.queries.schema() {
		start := time.Now()
		if _, err := db.Exec(ctx, statement); err != nil {
			e.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, statement)
			return fmt.Errorf("bootstrap schema: %w", err)
		}
		e.logQueryWithDuration(ctx, statement, logActionSchema, time.Since(start))
	}

	return nil
}

// Shutdown closes the connection pool. It fails with graphstore.ErrSessionsOpen while sessions are open.
func (e *Engine) Shutdown(ctx context.Context) error {
	observer, ctx := e.startLifecycleTracing(ctx, spanNameShutdown)

	err := e.shutdown(ctx)

	observer.finish(err)
	e.recordLifecycle(ctx, logActionShutdown, err)

	return err
}

func (e *Engine) shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}

	if e.openSessions > 0 {
		e.logWarn(ctx, logMsgShutdownRefused, logAttrOpenSessions, e.openSessions)
		return fmt.Errorf("%w: %d", graphstore.ErrSessionsOpen, e.openSessions)
	}

	start := time.Now()
	err := e.db.Close()
	e.db = nil

	if err != nil {
		e.logError(ctx, logMsgCloseFailed, err)
		return fmt.Errorf("close connection pool: %w", err)
	}

	e.logOperation(ctx, logActionShutdown, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

// Purge truncates both tables. The engine must be started and no sessions may be open.
func (e *Engine) Purge(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return graphstore.ErrEngineNotStarted
	}

	if e.openSessions > 0 {
		return fmt.Errorf("%w: %d", graphstore.ErrSessionsOpen, e.openSessions)
	}

	sqlQuery, err := e.queries.truncate()
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err)
		return err
	}

	start := time.Now()
	if _, err = e.db.Exec(ctx, sqlQuery); err != nil {
		e.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return fmt.Errorf("truncate tables: %w", err)
	}

	e.logQueryWithDuration(ctx, sqlQuery, logActionPurge, time.Since(start))
	e.logOperation(ctx, logActionPurge, logAttrVertexTable, e.vertexTable, logAttrEdgeTable, e.edgeTable)

	return nil
}

// OpenSession opens a new Session. The transaction starts with the first statement.
func (e *Engine) OpenSession(ctx context.Context) (graphstore.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil, graphstore.ErrEngineNotStarted
	}

	e.openSessions++

	return &session{engine: e, db: e.db}, nil
}

// OpenSessions returns the number of sessions that have not been closed yet.
func (e *Engine) OpenSessions() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.openSessions
}

func (e *Engine) releaseSession() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.openSessions--
}

// CountVertices returns the number of stored vertices.
func (e *Engine) CountVertices(ctx context.Context) (int64, error) {
	return e.count(ctx, e.vertexTable)
}

// CountEdges returns the number of stored edges.
func (e *Engine) CountEdges(ctx context.Context) (int64, error) {
	return e.count(ctx, e.edgeTable)
}

func (e *Engine) count(ctx context.Context, table string) (int64, error) {
	e.mu.Lock()
	db := e.db
	e.mu.Unlock()

	if db == nil {
		return 0, graphstore.ErrEngineNotStarted
	}

	sqlQuery, err := e.queries.count(table)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err)
		return 0, err
	}

	start := time.Now()
	rows, err := db.Query(ctx, sqlQuery)
	if err != nil {
		e.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		e.recordErrorMetrics(ctx, logActionCount, err)
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var count int64
	if rows.Next() {
		if err = rows.Scan(&count); err != nil {
			return 0, err
		}
	}

	if err = rows.Err(); err != nil {
		return 0, err
	}

	e.logQueryWithDuration(ctx, sqlQuery, logActionCount, time.Since(start))

	return count, nil
}

var _ graphstore.Engine = (*Engine)(nil)
var _ graphstore.Purger = (*Engine)(nil)
