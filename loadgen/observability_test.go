package loadgen_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/testutil/helper"
)

func Test_ContextualLogger_TakesPrecedenceAndCarriesSpanContext(t *testing.T) {
	contextual := helper.NewContextualLoggerSpy(true)
	plain := helper.NewLogHandlerSpy(false)
	tracing := helper.NewTracingCollectorSpy(true)
	f := newFixture(t,
		loadgen.WithLogger(slog.New(plain)),
		loadgen.WithContextualLogger(contextual),
		loadgen.WithTracing(tracing),
	)
	f.engine.FailCommits(1, graphstore.ErrWriteConflict)
	shards, err := loadgen.Shard(loadgen.VertexLabels(1), 1)
	require.NoError(t, err)

	_, err = f.coordinator.RunBatch(context.Background(), loadgen.BatchSpec{
		Phase:   loadgen.PhaseAddVertices,
		Cycle:   2,
		Index:   7,
		Workers: 1,
		Tasks:   f.coordinator.VertexAdders(shards, 1),
	})
	require.Error(t, err)

	aborted := contextual.RecordsWithMessage("error", "batch aborted")
	require.Len(t, aborted, 1)
	batch, ok := aborted[0].Arg("batch")
	require.True(t, ok)
	assert.Equal(t, 7, batch)
	cycle, _ := aborted[0].Arg("cycle")
	assert.Equal(t, 2, cycle)

	span, ok := helper.SpySpanFromContext(aborted[0].Context)
	require.True(t, ok, "the log call must receive the batch span's context")
	records := tracing.GetSpanRecords()
	require.Len(t, records, 1)
	assert.Same(t, records[0].SpanContext, span)

	assert.Empty(t, plain.GetRecords(), "the plain logger must not be used when a contextual logger is set")
}

func Test_Lifecycle_LogsRestartsAtDebugLevel(t *testing.T) {
	logs := helper.NewLogHandlerSpy(false)
	f := newFixture(t, loadgen.WithLogger(slog.New(logs)))

	require.NoError(t, f.lifecycle.Reopen(context.Background()))

	assert.True(t, logs.HasDebugLogWithMessage("store restarted").WithAttributeKey("reopens").WithDurationMS().Assert())
}
