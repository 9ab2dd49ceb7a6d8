package badgerengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	logMsgOperation        = "graphstore operation: "
	logMsgOpenFailed       = "failed to open badger database"
	logMsgCloseFailed      = "failed to close badger database"
	logMsgGCFailed         = "value log garbage collection failed"
	logMsgCommitted        = "session committed"
	logMsgRolledBack       = "session rolled back"
	logMsgWriteConflict    = "write conflict detected"
	logMsgShutdownRefused  = "shutdown refused, sessions still open"
	logAttrError           = "error"
	logAttrDataDir         = "data_dir"
	logAttrDurationMS      = "duration_ms"
	logAttrOpenSessions    = "open_sessions"
	logAttrWrites          = "writes"
	logAttrRewrites        = "rewrites"
	logActionStartup       = "startup"
	logActionShutdown      = "shutdown"
	logActionPurge         = "purge"
	logActionValueLogGC    = "value log gc"
	defaultDirPermissions  = 0o750
	defaultNumVersionsKept = 1
)

// Engine is a graphstore.Engine backed by a BadgerDB data directory.
type Engine struct {
	dataDir        string
	syncWrites     bool
	gcDiscardRatio float64

	logger           graphstore.Logger
	contextualLogger graphstore.ContextualLogger
	metricsCollector graphstore.MetricsCollector
	tracingCollector graphstore.TracingCollector
	badgerLogger     *slog.Logger

	mu           sync.Mutex
	db           *badger.DB
	openSessions int64
}

// NewEngine creates an Engine for the given data directory. The engine is not started.
func NewEngine(dataDir string, options ...Option) (*Engine, error) {
	if dataDir == "" {
		return nil, graphstore.ErrEmptyDataDir
	}

	e := &Engine{dataDir: dataDir}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// DataDir returns the directory the engine stores its files in.
func (e *Engine) DataDir() string {
	return e.dataDir
}

// Startup opens the data directory. It fails with graphstore.ErrEngineAlreadyStarted when already open.
func (e *Engine) Startup(ctx context.Context) error {
	ctx, span := e.startSpan(ctx, spanNameStartup)
	start := time.Now()

	err := e.startup(ctx)

	e.finishSpan(span, err, time.Since(start))
	e.recordLifecycle(ctx, logActionStartup, statusOf(err))

	return err
}

func (e *Engine) startup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return graphstore.ErrEngineAlreadyStarted
	}

	if err := os.MkdirAll(e.dataDir, defaultDirPermissions); err != nil {
		e.logError(ctx, logMsgOpenFailed, err, logAttrDataDir, e.dataDir)
		return fmt.Errorf("create data directory %s: %w", e.dataDir, err)
	}

	opts := badger.DefaultOptions(e.dataDir).
		WithSyncWrites(e.syncWrites).
		WithNumVersionsToKeep(defaultNumVersionsKept).
		WithDetectConflicts(true)

	if e.badgerLogger != nil {
		opts = opts.WithLogger(&slogBadgerLogger{logger: e.badgerLogger})
	} else {
		opts = opts.WithLogger(nil)
	}

	start := time.Now()
	db, err := badger.Open(opts)
	if err != nil {
		e.logError(ctx, logMsgOpenFailed, err, logAttrDataDir, e.dataDir)
		return fmt.Errorf("open badger database: %w", err)
	}

	e.db = db
	e.logOperation(ctx, logActionStartup, logAttrDataDir, e.dataDir, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

// Shutdown closes the data directory.
// It fails with graphstore.ErrSessionsOpen while sessions are open and is a no-op when not started.
func (e *Engine) Shutdown(ctx context.Context) error {
	ctx, span := e.startSpan(ctx, spanNameShutdown)
	start := time.Now()

	err := e.shutdown(ctx)

	e.finishSpan(span, err, time.Since(start))
	e.recordLifecycle(ctx, logActionShutdown, statusOf(err))

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

	if e.gcDiscardRatio > 0 {
		e.runValueLogGC(ctx)
	}

	start := time.Now()
	if err := e.db.Close(); err != nil {
		e.logError(ctx, logMsgCloseFailed, err, logAttrDataDir, e.dataDir)
		e.db = nil
		return fmt.Errorf("close badger database: %w", err)
	}

	e.db = nil
	e.logOperation(ctx, logActionShutdown, logAttrDataDir, e.dataDir, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

// runValueLogGC rewrites value log files until BadgerDB reports nothing left to reclaim.
func (e *Engine) runValueLogGC(ctx context.Context) {
	start := time.Now()
	rewrites := 0

	for {
		err := e.db.RunValueLogGC(e.gcDiscardRatio)
		if err == nil {
			rewrites++
			continue
		}

		if !errors.Is(err, badger.ErrNoRewrite) {
			e.logWarn(ctx, logMsgGCFailed, logAttrError, err.Error())
		}

		break
	}

	e.logOperation(ctx, logActionValueLogGC,
		logAttrDataDir, e.dataDir,
		logAttrRewrites, rewrites,
		logAttrDurationMS, toMilliseconds(time.Since(start)),
	)
}

// Purge drops all vertices and edges. The engine must be started and no sessions may be open.
func (e *Engine) Purge(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return graphstore.ErrEngineNotStarted
	}

	if e.openSessions > 0 {
		return fmt.Errorf("%w: %d", graphstore.ErrSessionsOpen, e.openSessions)
	}

	if err := e.db.DropAll(); err != nil {
		return fmt.Errorf("drop all keys: %w", err)
	}

	e.logOperation(ctx, logActionPurge, logAttrDataDir, e.dataDir)

	return nil
}

// OpenSession opens a new Session on the running engine.
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
	e.recordOpenSessions(ctx, e.openSessions)

	return &session{engine: e, db: e.db}, nil
}

// OpenSessions returns the number of sessions that have not been closed yet.
func (e *Engine) OpenSessions() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.openSessions
}

func (e *Engine) releaseSession(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.openSessions--
	e.recordOpenSessions(ctx, e.openSessions)
}

// CountVertices returns the number of stored vertices.
func (e *Engine) CountVertices(ctx context.Context) (int64, error) {
	return e.countPrefix(ctx, []byte{prefixVertex})
}

// CountEdges returns the number of stored edges.
func (e *Engine) CountEdges(ctx context.Context) (int64, error) {
	return e.countPrefix(ctx, []byte{prefixEdge})
}

func (e *Engine) countPrefix(ctx context.Context, prefix []byte) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return 0, graphstore.ErrEngineNotStarted
	}

	var count int64
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if count%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			count++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func statusOf(err error) string {
	if err != nil {
		return statusError
	}

	return statusSuccess
}

var _ graphstore.Engine = (*Engine)(nil)
var _ graphstore.Purger = (*Engine)(nil)
