package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// LifecycleState is the state of the store as seen by the load generator.
type LifecycleState int

const (
	// StateClosed means the engine is shut down and no handles can be opened.
	StateClosed LifecycleState = iota
	// StateOpen means the engine is started and handles can be opened.
	StateOpen
)

func (s LifecycleState) String() string {
	switch s {
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Lifecycle owns the engine's Closed → Open → Closed state machine and counts open handles.
// A transition is refused while any handle is open.
type Lifecycle struct {
	engine   graphstore.Engine
	settings *settings

	mu          sync.Mutex
	state       LifecycleState
	openHandles int
	reopens     int
}

// NewLifecycle creates a closed Lifecycle for engine.
func NewLifecycle(engine graphstore.Engine, options ...Option) (*Lifecycle, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	s, err := newSettings(options...)
	if err != nil {
		return nil, err
	}

	return newLifecycle(engine, s), nil
}

func newLifecycle(engine graphstore.Engine, s *settings) *Lifecycle {
	return &Lifecycle{engine: engine, settings: s}
}

// Start opens the store. Starting an open Lifecycle is a no-op.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateOpen {
		return nil
	}

	if err := l.engine.Startup(ctx); err != nil {
		return fmt.Errorf("start store: %w", err)
	}

	l.state = StateOpen

	return nil
}

// OpenHandle opens a StoreHandle. It is safe for concurrent use while the Lifecycle is open.
func (l *Lifecycle) OpenHandle(ctx context.Context) (*StoreHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateOpen {
		return nil, ErrLifecycleClosed
	}

	session, err := l.engine.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	l.openHandles++

	return &StoreHandle{session: session, lifecycle: l}, nil
}

// Reopen restarts the store: Open → Closed → Open.
// It fails with ErrHandlesStillOpen before any transition if a handle is open.
// A failed shutdown or startup is wrapped in ErrRestartFailed and is never retried.
func (l *Lifecycle) Reopen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateOpen {
		return ErrLifecycleClosed
	}

	if l.openHandles > 0 {
		return fmt.Errorf("%w: %d", ErrHandlesStillOpen, l.openHandles)
	}

	ctx, span := l.settings.startSpan(ctx, spanNameRestart, map[string]string{logAttrReopens: itoa(l.reopens)})
	start := time.Now()

	err := l.restart(ctx)

	duration := time.Since(start)
	l.settings.finishSpan(span, statusOf(err), err, nil)
	l.settings.recordRestart(ctx, operationRestart, duration, err)

	if err != nil {
		l.settings.logError(ctx, logMsgRestartFailed, err)
		return err
	}

	l.reopens++
	l.settings.logDebug(ctx, logMsgStoreRestarted, logAttrReopens, l.reopens, logAttrDurationMS, toMilliseconds(duration))

	return nil
}

func (l *Lifecycle) restart(ctx context.Context) error {
	if err := l.engine.Shutdown(ctx); err != nil {
		return errors.Join(ErrRestartFailed, fmt.Errorf("shutdown: %w", err))
	}

	l.state = StateClosed

	if err := l.engine.Startup(ctx); err != nil {
		return errors.Join(ErrRestartFailed, fmt.Errorf("startup: %w", err))
	}

	l.state = StateOpen

	return nil
}

// Close shuts the store down: Open → Closed. Closing a closed Lifecycle is a no-op.
func (l *Lifecycle) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return nil
	}

	if l.openHandles > 0 {
		return fmt.Errorf("%w: %d", ErrHandlesStillOpen, l.openHandles)
	}

	start := time.Now()
	err := l.engine.Shutdown(ctx)
	l.settings.recordRestart(ctx, operationClose, time.Since(start), err)

	if err != nil {
		l.settings.logError(ctx, logMsgCloseFailed, err)
		return fmt.Errorf("close store: %w", err)
	}

	l.state = StateClosed

	return nil
}

// State returns the current state.
func (l *Lifecycle) State() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// OpenHandles returns the number of handles that were opened and not closed yet.
func (l *Lifecycle) OpenHandles() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.openHandles
}

// Reopens returns how many restarts completed.
func (l *Lifecycle) Reopens() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.reopens
}

func (l *Lifecycle) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.openHandles--
}

// StoreHandle is a session on the store that is accounted for by its Lifecycle.
// It is used by a single worker and is not safe for concurrent use.
type StoreHandle struct {
	session   graphstore.Session
	lifecycle *Lifecycle
	closeOnce sync.Once
}

// AddVertex creates a vertex of label and stores id as its lookup property. It does not commit.
func (h *StoreHandle) AddVertex(ctx context.Context, label graphstore.TypeLabel, id RecordID) (graphstore.VertexHandle, error) {
	v, err := h.session.CreateVertex(ctx, label)
	if err != nil {
		return graphstore.VertexHandle{}, err
	}

	if err = h.session.SetProperty(ctx, v, graphstore.LookupPropertyKey, int64(id)); err != nil {
		return graphstore.VertexHandle{}, err
	}

	return v, nil
}

// FindVertex resolves a RecordID by point lookup in the base vertex scope.
func (h *StoreHandle) FindVertex(ctx context.Context, id RecordID) (graphstore.VertexHandle, bool, error) {
	return h.session.FindByProperty(ctx, graphstore.BaseVertexLabel, graphstore.LookupPropertyKey, int64(id))
}

// AddEdge creates an edge of label between two resolved vertices. It does not commit.
func (h *StoreHandle) AddEdge(ctx context.Context, label graphstore.TypeLabel, from, to graphstore.VertexHandle) error {
	_, err := h.session.CreateEdge(ctx, label, from, to)

	return err
}

// DeleteVertex deletes a resolved vertex and its incident edges. It does not commit.
func (h *StoreHandle) DeleteVertex(ctx context.Context, v graphstore.VertexHandle) error {
	return h.session.DeleteVertex(ctx, v)
}

// Commit commits all pending changes.
func (h *StoreHandle) Commit(ctx context.Context) error {
	return h.session.Commit(ctx)
}

// Rollback discards all pending changes.
func (h *StoreHandle) Rollback(ctx context.Context) error {
	return h.session.Rollback(ctx)
}

// Close closes the session and releases the handle. It is safe to call more than once.
func (h *StoreHandle) Close(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		err = h.session.Close(ctx)
		h.lifecycle.release()
	})

	return err
}
