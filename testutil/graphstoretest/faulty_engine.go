package graphstoretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// FaultyEngine decorates a graphstore.Engine. Injected faults are consumed in order by the next
// matching calls across all sessions.
type FaultyEngine struct {
	graphstore.Engine

	mu              sync.Mutex
	commitFaults    []error
	startupFaults   []error
	shutdownFaults  []error
	startups        int
	shutdowns       int
	commits         int
	injectedCommits int
	openSessions    int
	maxOpenSessions int
}

// NewFaultyEngine wraps inner.
func NewFaultyEngine(inner graphstore.Engine) *FaultyEngine {
	return &FaultyEngine{Engine: inner}
}

// FailCommits makes the next n commits fail with err after rolling back the staged changes.
func (e *FaultyEngine) FailCommits(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for range n {
		e.commitFaults = append(e.commitFaults, err)
	}
}

// FailNextStartup makes the next Startup fail with err without starting the inner engine.
// Faults queue up in call order; a nil err lets that Startup pass.
func (e *FaultyEngine) FailNextStartup(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.startupFaults = append(e.startupFaults, err)
}

// FailNextShutdown makes the next Shutdown fail with err without shutting the inner engine down.
func (e *FaultyEngine) FailNextShutdown(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.shutdownFaults = append(e.shutdownFaults, err)
}

// Startup implements graphstore.Engine.
func (e *FaultyEngine) Startup(ctx context.Context) error {
	if err := e.take(&e.startupFaults); err != nil {
		return err
	}

	if err := e.Engine.Startup(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.startups++
	e.mu.Unlock()

	return nil
}

// Shutdown implements graphstore.Engine.
func (e *FaultyEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	open := e.openSessions
	e.mu.Unlock()

	if open > 0 {
		return fmt.Errorf("%w: %d", graphstore.ErrSessionsOpen, open)
	}

	if err := e.take(&e.shutdownFaults); err != nil {
		return err
	}

	if err := e.Engine.Shutdown(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.shutdowns++
	e.mu.Unlock()

	return nil
}

// OpenSession implements graphstore.Engine.
func (e *FaultyEngine) OpenSession(ctx context.Context) (graphstore.Session, error) {
	inner, err := e.Engine.OpenSession(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.openSessions++
	e.maxOpenSessions = max(e.maxOpenSessions, e.openSessions)
	e.mu.Unlock()

	return &faultySession{Session: inner, engine: e}, nil
}

// Startups returns the number of successful startups.
func (e *FaultyEngine) Startups() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.startups
}

// Shutdowns returns the number of successful shutdowns.
func (e *FaultyEngine) Shutdowns() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.shutdowns
}

// Commits returns the number of successful commits.
func (e *FaultyEngine) Commits() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.commits
}

// InjectedCommitFaults returns how many commits failed with an injected error.
func (e *FaultyEngine) InjectedCommitFaults() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.injectedCommits
}

// OpenSessions returns the number of sessions that are not closed yet.
func (e *FaultyEngine) OpenSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.openSessions
}

// MaxOpenSessions returns the highest number of sessions that were open at the same time.
func (e *FaultyEngine) MaxOpenSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.maxOpenSessions
}

func (e *FaultyEngine) take(faults *[]error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(*faults) == 0 {
		return nil
	}

	err := (*faults)[0]
	*faults = (*faults)[1:]

	return err
}

type faultySession struct {
	graphstore.Session

	engine    *FaultyEngine
	closeOnce sync.Once
}

func (s *faultySession) Commit(ctx context.Context) error {
	if err := s.engine.take(&s.engine.commitFaults); err != nil {
		if rollbackErr := s.Session.Rollback(ctx); rollbackErr != nil {
			return rollbackErr
		}

		s.engine.mu.Lock()
		s.engine.injectedCommits++
		s.engine.mu.Unlock()

		return err
	}

	if err := s.Session.Commit(ctx); err != nil {
		return err
	}

	s.engine.mu.Lock()
	s.engine.commits++
	s.engine.mu.Unlock()

	return nil
}

func (s *faultySession) Close(ctx context.Context) error {
	err := s.Session.Close(ctx)

	s.closeOnce.Do(func() {
		s.engine.mu.Lock()
		s.engine.openSessions--
		s.engine.mu.Unlock()
	})

	return err
}
