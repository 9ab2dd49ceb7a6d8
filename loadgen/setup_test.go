package loadgen_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/badgerengine"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/testutil/graphstoretest"
)

// newEngine returns a shut down badger engine in a temporary directory, wrapped for fault injection.
func newEngine(t *testing.T) *graphstoretest.FaultyEngine {
	t.Helper()

	inner, err := badgerengine.NewEngine(t.TempDir())
	require.NoError(t, err)

	engine := graphstoretest.NewFaultyEngine(inner)
	t.Cleanup(func() { _ = inner.Shutdown(context.Background()) })

	return engine
}

type fixture struct {
	engine      *graphstoretest.FaultyEngine
	lifecycle   *loadgen.Lifecycle
	registry    *loadgen.Registry
	ids         *loadgen.IDGenerator
	coordinator *loadgen.BatchCoordinator
}

// newFixture wires a started Lifecycle, an empty Registry and a BatchCoordinator around a fresh engine.
func newFixture(t *testing.T, options ...loadgen.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	engine := newEngine(t)

	lifecycle, err := loadgen.NewLifecycle(engine, options...)
	require.NoError(t, err)
	require.NoError(t, lifecycle.Start(ctx))
	t.Cleanup(func() { _ = lifecycle.Close(context.Background()) })

	registry := loadgen.NewRegistry()
	ids := loadgen.NewIDGenerator()

	coordinator, err := loadgen.NewBatchCoordinator(registry, lifecycle, ids, options...)
	require.NoError(t, err)

	return &fixture{
		engine:      engine,
		lifecycle:   lifecycle,
		registry:    registry,
		ids:         ids,
		coordinator: coordinator,
	}
}

// addVertices runs one vertex batch with a single worker that adds n vertices, one per label.
func (f *fixture) addVertices(t *testing.T, n int) *loadgen.BatchResult {
	t.Helper()

	shards, err := loadgen.Shard(loadgen.VertexLabels(n), 1)
	require.NoError(t, err)

	result, err := f.coordinator.RunBatch(context.Background(), loadgen.BatchSpec{
		Phase:   loadgen.PhaseAddVertices,
		Workers: 1,
		Tasks:   f.coordinator.VertexAdders(shards, 1),
	})
	require.NoError(t, err)

	return result
}

// removeBehindRegistry deletes the vertex of id directly in the store without telling the Registry.
func (f *fixture) removeBehindRegistry(t *testing.T, id loadgen.RecordID) {
	t.Helper()
	ctx := context.Background()

	handle, err := f.lifecycle.OpenHandle(ctx)
	require.NoError(t, err)
	defer func() { _ = handle.Close(ctx) }()

	v, ok, err := handle.FindVertex(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, handle.DeleteVertex(ctx, v))
	require.NoError(t, handle.Commit(ctx))
}

func (f *fixture) countVertices(t *testing.T) int64 {
	t.Helper()

	n, err := f.engine.CountVertices(context.Background())
	require.NoError(t, err)

	return n
}

func (f *fixture) countEdges(t *testing.T) int64 {
	t.Helper()

	n, err := f.engine.CountEdges(context.Background())
	require.NoError(t, err)

	return n
}

// eventRecorder is an Observer that keeps every event it receives.
type eventRecorder struct {
	mu     sync.Mutex
	events []loadgen.Event
}

func (r *eventRecorder) OnEvent(_ context.Context, event loadgen.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.events))
	for _, event := range r.events {
		names = append(names, event.EventName())
	}

	return names
}

func eventsOf[E loadgen.Event](r *eventRecorder) []E {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []E
	for _, event := range r.events {
		if e, ok := event.(E); ok {
			out = append(out, e)
		}
	}

	return out
}
