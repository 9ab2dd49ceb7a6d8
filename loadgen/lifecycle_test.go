package loadgen_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/testutil/helper"
)

func Test_NewLifecycle_RejectsNilEngine(t *testing.T) {
	_, err := loadgen.NewLifecycle(nil)

	assert.ErrorIs(t, err, loadgen.ErrNilEngine)
}

func Test_Lifecycle_StartAndCloseAreIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	lifecycle, err := loadgen.NewLifecycle(engine)
	require.NoError(t, err)
	assert.Equal(t, loadgen.StateClosed, lifecycle.State())

	require.NoError(t, lifecycle.Start(ctx))
	require.NoError(t, lifecycle.Start(ctx))
	assert.Equal(t, loadgen.StateOpen, lifecycle.State())
	assert.Equal(t, 1, engine.Startups())

	require.NoError(t, lifecycle.Close(ctx))
	require.NoError(t, lifecycle.Close(ctx))
	assert.Equal(t, loadgen.StateClosed, lifecycle.State())
	assert.Equal(t, 1, engine.Shutdowns())
}

func Test_Lifecycle_OpenHandle_FailsWhenClosed(t *testing.T) {
	lifecycle, err := loadgen.NewLifecycle(newEngine(t))
	require.NoError(t, err)

	_, err = lifecycle.OpenHandle(context.Background())

	assert.ErrorIs(t, err, loadgen.ErrLifecycleClosed)
	assert.Zero(t, lifecycle.OpenHandles())
}

func Test_Lifecycle_Reopen_RefusedWhileHandleIsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	handle, err := f.lifecycle.OpenHandle(ctx)
	require.NoError(t, err)

	err = f.lifecycle.Reopen(ctx)

	assert.ErrorIs(t, err, loadgen.ErrHandlesStillOpen)
	assert.Equal(t, loadgen.StateOpen, f.lifecycle.State())
	assert.Zero(t, f.engine.Shutdowns(), "no transition may happen while a handle is open")

	require.NoError(t, handle.Close(ctx))
	require.NoError(t, handle.Close(ctx))
	assert.Zero(t, f.lifecycle.OpenHandles())

	require.NoError(t, f.lifecycle.Reopen(ctx))
	assert.Equal(t, 1, f.lifecycle.Reopens())
}

func Test_Lifecycle_Close_RefusedWhileHandleIsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	handle, err := f.lifecycle.OpenHandle(ctx)
	require.NoError(t, err)
	defer func() { _ = handle.Close(ctx) }()

	assert.ErrorIs(t, f.lifecycle.Close(ctx), loadgen.ErrHandlesStillOpen)
	assert.Equal(t, loadgen.StateOpen, f.lifecycle.State())
}

func Test_Lifecycle_Reopen_KeepsCommittedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	handle, err := f.lifecycle.OpenHandle(ctx)
	require.NoError(t, err)
	_, err = handle.AddVertex(ctx, "vertex_0", 7)
	require.NoError(t, err)
	require.NoError(t, handle.Commit(ctx))
	_, err = handle.AddVertex(ctx, "vertex_0", 8)
	require.NoError(t, err)
	require.NoError(t, handle.Close(ctx))

	require.NoError(t, f.lifecycle.Reopen(ctx))

	handle, err = f.lifecycle.OpenHandle(ctx)
	require.NoError(t, err)
	defer func() { _ = handle.Close(ctx) }()

	v, ok, err := handle.FindVertex(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok, "committed vertex must survive the restart")
	assert.Equal(t, graphstore.TypeLabel("vertex_0"), v.Label)

	_, ok, err = handle.FindVertex(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok, "uncommitted vertex must not survive closing the handle")
}

func Test_Lifecycle_Reopen_FailedStartupIsFatal(t *testing.T) {
	ctx := context.Background()
	metrics := helper.NewMetricsCollectorSpy(true)
	f := newFixture(t, loadgen.WithMetrics(metrics))
	diskGone := errors.New("disk gone")
	f.engine.FailNextStartup(diskGone)

	err := f.lifecycle.Reopen(ctx)

	assert.ErrorIs(t, err, loadgen.ErrRestartFailed)
	assert.ErrorIs(t, err, diskGone)
	assert.Equal(t, loadgen.StateClosed, f.lifecycle.State())
	assert.Zero(t, f.lifecycle.Reopens())
	assert.True(t, metrics.HasCounterRecordForMetric("graphstore_restarts_total").
		WithStatus("error").
		WithLabel("operation", "restart").
		Assert())

	_, err = f.lifecycle.OpenHandle(ctx)
	assert.ErrorIs(t, err, loadgen.ErrLifecycleClosed)
}

func Test_Lifecycle_Reopen_FailedShutdownLeavesStoreOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.FailNextShutdown(errors.New("flush failed"))

	err := f.lifecycle.Reopen(ctx)

	assert.ErrorIs(t, err, loadgen.ErrRestartFailed)
	assert.Equal(t, loadgen.StateOpen, f.lifecycle.State())
	assert.Zero(t, f.lifecycle.Reopens())
}

func Test_Lifecycle_Reopen_IsTraced(t *testing.T) {
	ctx := context.Background()
	tracing := helper.NewTracingCollectorSpy(true)
	metrics := helper.NewMetricsCollectorSpy(true)
	f := newFixture(t, loadgen.WithTracing(tracing), loadgen.WithMetrics(metrics))

	require.NoError(t, f.lifecycle.Reopen(ctx))

	assert.True(t, tracing.HasSpanRecordForName("graphstore.restart").WithStatus("success").Assert())
	assert.Zero(t, tracing.CountUnfinishedSpans())
	assert.True(t, metrics.HasDurationRecordForMetric("graphstore_restart_duration_seconds").
		WithLabel("operation", "restart").
		Assert())
}
