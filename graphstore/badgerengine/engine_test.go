package badgerengine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/badgerengine"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/testutil/helper"
)

func startedEngine(t *testing.T, options ...badgerengine.Option) *badgerengine.Engine {
	t.Helper()

	engine, err := badgerengine.NewEngine(t.TempDir(), options...)
	require.NoError(t, err)
	require.NoError(t, engine.Startup(context.Background()))

	t.Cleanup(func() { _ = engine.Shutdown(context.Background()) })

	return engine
}

func addVertex(t *testing.T, engine graphstore.Engine, label graphstore.TypeLabel, pid int64) graphstore.VertexHandle {
	t.Helper()
	ctx := context.Background()

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	v, err := session.CreateVertex(ctx, label)
	require.NoError(t, err)
	require.NoError(t, session.SetProperty(ctx, v, graphstore.LookupPropertyKey, pid))
	require.NoError(t, session.Commit(ctx))

	return v
}

func Test_NewEngine_RejectsEmptyDataDir(t *testing.T) {
	_, err := badgerengine.NewEngine("")

	assert.ErrorIs(t, err, graphstore.ErrEmptyDataDir)
}

func Test_NewEngine_RejectsInvalidGCRatio(t *testing.T) {
	_, err := badgerengine.NewEngine(t.TempDir(), badgerengine.WithValueLogGC(1.5))

	assert.ErrorIs(t, err, badgerengine.ErrInvalidGCDiscardRatio)
}

func Test_Engine_OpenSession_FailsWhenNotStarted(t *testing.T) {
	engine, err := badgerengine.NewEngine(t.TempDir())
	require.NoError(t, err)

	_, err = engine.OpenSession(context.Background())

	assert.ErrorIs(t, err, graphstore.ErrEngineNotStarted)
}

func Test_Engine_Startup_FailsWhenAlreadyStarted(t *testing.T) {
	engine := startedEngine(t)

	err := engine.Startup(context.Background())

	assert.ErrorIs(t, err, graphstore.ErrEngineAlreadyStarted)
}

func Test_Engine_CreateVertex_IsFoundByLookupProperty(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	created := addVertex(t, engine, "vertex_3", 42)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	found, ok, err := session.FindByProperty(ctx, graphstore.BaseVertexLabel, graphstore.LookupPropertyKey, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, graphstore.TypeLabel("vertex_3"), found.Label)

	_, ok, err = session.FindByProperty(ctx, "vertex_4", graphstore.LookupPropertyKey, 42)
	require.NoError(t, err)
	assert.False(t, ok, "a narrower scope must not match another label")

	_, ok, err = session.FindByProperty(ctx, graphstore.BaseVertexLabel, graphstore.LookupPropertyKey, 43)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Engine_SetProperty_RejectsTakenValue(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	addVertex(t, engine, "vertex_0", 7)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	v, err := session.CreateVertex(ctx, "vertex_1")
	require.NoError(t, err)

	err = session.SetProperty(ctx, v, graphstore.LookupPropertyKey, 7)

	assert.ErrorIs(t, err, graphstore.ErrUniqueViolation)
}

func Test_Engine_Rollback_DiscardsStagedVertex(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)

	v, err := session.CreateVertex(ctx, "vertex_0")
	require.NoError(t, err)
	require.NoError(t, session.SetProperty(ctx, v, graphstore.LookupPropertyKey, 1))
	require.NoError(t, session.Rollback(ctx))
	require.NoError(t, session.Close(ctx))

	count, err := engine.CountVertices(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Engine_CreateEdge_CountsEdges(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	from := addVertex(t, engine, "vertex_0", 1)
	to := addVertex(t, engine, "vertex_1", 2)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	for range 5 {
		_, err = session.CreateEdge(ctx, "edge_0", from, to)
		require.NoError(t, err)
	}
	_, err = session.CreateEdge(ctx, "edge_1", from, from)
	require.NoError(t, err)
	require.NoError(t, session.Commit(ctx))

	edges, err := engine.CountEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), edges)

	vertices, err := engine.CountVertices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), vertices)
}

func Test_Engine_CreateEdge_ToMissingVertex_ReturnsRecordMissing(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	from := addVertex(t, engine, "vertex_0", 1)
	to := addVertex(t, engine, "vertex_1", 2)

	deleter, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	require.NoError(t, deleter.DeleteVertex(ctx, to))
	require.NoError(t, deleter.Commit(ctx))
	require.NoError(t, deleter.Close(ctx))

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	_, err = session.CreateEdge(ctx, "edge_0", from, to)

	assert.ErrorIs(t, err, graphstore.ErrRecordMissing)
	assert.True(t, graphstore.IsTransient(err))
}

func Test_Engine_DeleteVertex_RemovesIncidentEdgesAndIndex(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	a := addVertex(t, engine, "vertex_0", 1)
	b := addVertex(t, engine, "vertex_1", 2)
	c := addVertex(t, engine, "vertex_2", 3)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	_, err = session.CreateEdge(ctx, "edge_0", a, b)
	require.NoError(t, err)
	_, err = session.CreateEdge(ctx, "edge_0", c, a)
	require.NoError(t, err)
	_, err = session.CreateEdge(ctx, "edge_0", b, c)
	require.NoError(t, err)
	require.NoError(t, session.Commit(ctx))

	require.NoError(t, session.DeleteVertex(ctx, a))
	require.NoError(t, session.Commit(ctx))

	_, ok, err := session.FindByProperty(ctx, graphstore.BaseVertexLabel, graphstore.LookupPropertyKey, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, session.Close(ctx))

	edges, err := engine.CountEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges, "only the edge between b and c survives")

	vertices, err := engine.CountVertices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), vertices)
}

func Test_Engine_DeleteVertex_Twice_ReturnsRecordMissing(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	v := addVertex(t, engine, "vertex_0", 1)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	require.NoError(t, session.DeleteVertex(ctx, v))
	require.NoError(t, session.Commit(ctx))

	err = session.DeleteVertex(ctx, v)

	assert.ErrorIs(t, err, graphstore.ErrRecordMissing)
}

func Test_Engine_ConcurrentDeletesOfSameVertex_OneCommitConflicts(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	v := addVertex(t, engine, "vertex_0", 1)

	first, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = first.Close(ctx) }()

	second, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = second.Close(ctx) }()

	require.NoError(t, first.DeleteVertex(ctx, v))
	require.NoError(t, second.DeleteVertex(ctx, v))

	require.NoError(t, first.Commit(ctx))
	err = second.Commit(ctx)

	assert.ErrorIs(t, err, graphstore.ErrWriteConflict)
	assert.True(t, graphstore.IsTransient(err))
}

func Test_Engine_Shutdown_RefusedWhileSessionOpen(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)

	err = engine.Shutdown(ctx)
	assert.ErrorIs(t, err, graphstore.ErrSessionsOpen)

	require.NoError(t, session.Close(ctx))
	require.NoError(t, session.Close(ctx), "closing twice must not release twice")
	assert.Zero(t, engine.OpenSessions())
	assert.NoError(t, engine.Shutdown(ctx))
}

func Test_Engine_Restart_KeepsCommittedData(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	created := addVertex(t, engine, "vertex_5", 99)

	require.NoError(t, engine.Shutdown(ctx))
	require.NoError(t, engine.Startup(ctx))

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	defer func() { _ = session.Close(ctx) }()

	found, ok, err := session.FindByProperty(ctx, graphstore.BaseVertexLabel, graphstore.LookupPropertyKey, 99)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, found.ID)
}

func Test_Engine_Restart_RunsValueLogGC(t *testing.T) {
	ctx := context.Background()
	logSpy := helper.NewLogHandlerSpy(false)
	engine := startedEngine(t,
		badgerengine.WithValueLogGC(0.5),
		badgerengine.WithLogger(slog.New(logSpy)),
	)
	addVertex(t, engine, "vertex_3", 7)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	v, ok, err := session.FindByProperty(ctx, graphstore.BaseVertexLabel, graphstore.LookupPropertyKey, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, session.DeleteVertex(ctx, v))
	require.NoError(t, session.Commit(ctx))
	require.NoError(t, session.Close(ctx))

	require.NoError(t, engine.Shutdown(ctx))
	require.NoError(t, engine.Startup(ctx))

	assert.True(t, logSpy.HasInfoLogWithMessage("graphstore operation: value log gc").
		WithAttributeKey("rewrites").
		WithDurationMS().
		Assert())
	assert.False(t, logSpy.HasWarnLogWithMessage("value log garbage collection failed").Assert())

	count, err := engine.CountVertices(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Engine_Shutdown_SkipsValueLogGCByDefault(t *testing.T) {
	ctx := context.Background()
	logSpy := helper.NewLogHandlerSpy(false)
	engine := startedEngine(t, badgerengine.WithLogger(slog.New(logSpy)))

	require.NoError(t, engine.Shutdown(ctx))

	assert.False(t, logSpy.HasInfoLogWithMessage("graphstore operation: value log gc").Assert())
}

func Test_Engine_Purge_DropsEverything(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)
	addVertex(t, engine, "vertex_0", 1)
	addVertex(t, engine, "vertex_1", 2)

	require.NoError(t, engine.Purge(ctx))

	count, err := engine.CountVertices(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Engine_ClosedSession_RejectsMutations(t *testing.T) {
	ctx := context.Background()
	engine := startedEngine(t)

	session, err := engine.OpenSession(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Close(ctx))

	_, err = session.CreateVertex(ctx, "vertex_0")

	assert.ErrorIs(t, err, graphstore.ErrSessionClosed)
}

func Test_Engine_Observability_RecordsLifecycleAndCommits(t *testing.T) {
	ctx := context.Background()
	logSpy := helper.NewLogHandlerSpy(false)
	metricsSpy := helper.NewMetricsCollectorSpy(true)
	tracingSpy := helper.NewTracingCollectorSpy(true)

	engine := startedEngine(t,
		badgerengine.WithLogger(slog.New(logSpy)),
		badgerengine.WithMetrics(metricsSpy),
		badgerengine.WithTracing(tracingSpy),
	)
	addVertex(t, engine, "vertex_0", 1)

	require.NoError(t, engine.Shutdown(ctx))

	assert.True(t, logSpy.HasInfoLogWithMessage("graphstore operation: startup").WithDurationMS().Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage("graphstore operation: shutdown").WithDurationMS().Assert())
	assert.True(t, logSpy.HasDebugLogWithMessage("session committed").WithDurationMS().Assert())
	assert.True(t, metricsSpy.HasDurationRecord("graphstore_commit_duration_seconds"))
	assert.True(t, metricsSpy.HasCounterRecord("graphstore_lifecycle_transitions_total"))
	assert.True(t, metricsSpy.HasValueRecord("graphstore_open_sessions"))
	assert.True(t, tracingSpy.HasSpanRecord("graphstore.startup"))
	assert.True(t, tracingSpy.HasSpanRecord("graphstore.shutdown"))
}
