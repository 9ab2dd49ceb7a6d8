package loadgen_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
)

// smallPlan runs 9 batches with 2 workers:
//
//	setup:  2 × add-vertices (2), 1 × add-edges (2)
//	2 ×:    1 × delete-vertices (2), 1 × add-vertices (1), 1 × add-edges (1)
func smallPlan() loadgen.Plan {
	return loadgen.Plan{
		Workers:      2,
		VertexLabels: 4,
		EdgeLabels:   2,
		FanOut:       3,
		Setup: []loadgen.PhaseSpec{
			{Kind: loadgen.PhaseAddVertices, Batches: 2, Iterations: 2},
			{Kind: loadgen.PhaseAddEdges, Batches: 1, Iterations: 2},
		},
		Cycles: 2,
		Cycle: []loadgen.PhaseSpec{
			{Kind: loadgen.PhaseDeleteVertices, Batches: 1, Iterations: 2},
			{Kind: loadgen.PhaseAddVertices, Batches: 1, Iterations: 1},
			{Kind: loadgen.PhaseAddEdges, Batches: 1, Iterations: 1},
		},
	}
}

func Test_NewPhaseDriver_RejectsInvalidInput(t *testing.T) {
	_, err := loadgen.NewPhaseDriver(newEngine(t), loadgen.Plan{})
	assert.ErrorIs(t, err, loadgen.ErrInvalidPlan)

	_, err = loadgen.NewPhaseDriver(nil, smallPlan())
	assert.ErrorIs(t, err, loadgen.ErrNilEngine)

	_, err = loadgen.NewPhaseDriver(newEngine(t), smallPlan(), loadgen.WithRate(0, 1))
	assert.ErrorIs(t, err, loadgen.ErrInvalidRate)
}

func Test_PhaseDriver_SingleVertexRun(t *testing.T) {
	engine := newEngine(t)
	driver, err := loadgen.NewPhaseDriver(engine, loadgen.Plan{
		Workers:      1,
		VertexLabels: 1,
		EdgeLabels:   1,
		FanOut:       1,
		Setup:        []loadgen.PhaseSpec{{Kind: loadgen.PhaseAddVertices, Batches: 1, Iterations: 1}},
	})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RegistrySize)
	assert.Equal(t, uint64(1), summary.IDsIssued)
	assert.Equal(t, int64(1), summary.StoreVertices)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 1, summary.Reopens)
}

func Test_PhaseDriver_Run_ReportsConsistentSummary(t *testing.T) {
	engine := newEngine(t)
	plan := smallPlan()
	driver, err := loadgen.NewPhaseDriver(engine, plan, loadgen.WithSeed(7))
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	// setup: 2 batches × 2 workers × 2 iterations × 2 labels; each cycle: 2 workers × 1 iteration × 2 labels
	assert.Equal(t, int64(16+2*4), summary.VerticesAdded)
	assert.Equal(t, int64(2*2*2), summary.VerticesDeleted)
	// setup: 2 workers × 2 iterations × 1 label × fan-out 3; each cycle: 2 workers × 1 iteration × 1 label × 3
	assert.Equal(t, int64(12+2*6), summary.EdgesAdded)
	assert.Equal(t, uint64(24), summary.IDsIssued)
	assert.Equal(t, 16, summary.RegistrySize)
	assert.Equal(t, int64(summary.RegistrySize), summary.StoreVertices)
	assert.LessOrEqual(t, summary.StoreEdges, summary.EdgesAdded, "deletions cascade to edges")
	assert.Equal(t, plan.Batches(), summary.Batches)
	assert.Equal(t, plan.Batches(), summary.Reopens)
	assert.NotEqual(t, uuid.Nil, summary.RunID)

	assert.Equal(t, loadgen.StateClosed, driver.Lifecycle().State())
	assert.Equal(t, 16, driver.Registry().Len())
	assert.Equal(t, uint64(24), driver.IDs().Issued())
	assert.Equal(t, plan.Batches()+1, engine.Startups())
	assert.Equal(t, plan.Batches()+1, engine.Shutdowns())
	assert.LessOrEqual(t, engine.MaxOpenSessions(), plan.Workers)
}

func Test_PhaseDriver_Run_EmitsEventsInOrder(t *testing.T) {
	recorder := &eventRecorder{}
	plan := smallPlan()
	driver, err := loadgen.NewPhaseDriver(newEngine(t), plan, loadgen.WithObserver(recorder))
	require.NoError(t, err)

	_, err = driver.Run(context.Background())
	require.NoError(t, err)

	names := recorder.names()
	require.NotEmpty(t, names)
	assert.Equal(t, "RunStarted", names[0])
	assert.Equal(t, "RunCompleted", names[len(names)-1])

	assert.Len(t, eventsOf[loadgen.CycleStarted](recorder), plan.Cycles)
	assert.Len(t, eventsOf[loadgen.PhaseStarted](recorder), len(plan.Setup)+plan.Cycles*len(plan.Cycle))
	assert.Len(t, eventsOf[loadgen.PhaseCompleted](recorder), len(plan.Setup)+plan.Cycles*len(plan.Cycle))
	assert.Len(t, eventsOf[loadgen.BatchStarted](recorder), plan.Batches())
	assert.Len(t, eventsOf[loadgen.BatchCompleted](recorder), plan.Batches())

	phases := eventsOf[loadgen.PhaseStarted](recorder)
	assert.Equal(t, loadgen.PhaseAddVertices, phases[0].Phase)
	assert.Zero(t, phases[0].Cycle)
	assert.Equal(t, loadgen.PhaseDeleteVertices, phases[2].Phase)
	assert.Equal(t, 1, phases[2].Cycle)
	assert.Equal(t, 2, phases[len(phases)-1].Cycle)

	completed := eventsOf[loadgen.RunCompleted](recorder)
	require.Len(t, completed, 1)
	assert.Equal(t, int64(16), completed[0].Summary.StoreVertices)
}

func Test_PhaseDriver_Run_AbortsOnFatalErrorAndClosesStore(t *testing.T) {
	engine := newEngine(t)
	recorder := &eventRecorder{}
	driver, err := loadgen.NewPhaseDriver(engine, smallPlan(), loadgen.WithObserver(recorder))
	require.NoError(t, err)
	engine.FailCommits(1, errors.New("disk full"))

	summary, err := driver.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, loadgen.Summary{}, summary)
	assert.Equal(t, loadgen.StateClosed, driver.Lifecycle().State())
	assert.Empty(t, eventsOf[loadgen.RunCompleted](recorder))
	assert.Empty(t, eventsOf[loadgen.BatchCompleted](recorder))
}

func Test_PhaseDriver_Run_AbortsWhenRestartFails(t *testing.T) {
	engine := newEngine(t)
	driver, err := loadgen.NewPhaseDriver(engine, smallPlan())
	require.NoError(t, err)
	engine.FailNextStartup(nil) // initial start
	engine.FailNextStartup(nil) // first restart
	engine.FailNextStartup(errors.New("store corrupted"))

	_, err = driver.Run(context.Background())

	assert.ErrorIs(t, err, loadgen.ErrRestartFailed)
	assert.Equal(t, loadgen.StateClosed, driver.Lifecycle().State())
	assert.Equal(t, 1, driver.Lifecycle().Reopens(), "the run must stop at the first failed restart")
}

func Test_PhaseDriver_Run_SurvivesConflictsInEdgePhase(t *testing.T) {
	engine := newEngine(t)
	plan := loadgen.Plan{
		Workers:      2,
		VertexLabels: 2,
		EdgeLabels:   2,
		FanOut:       4,
		Setup: []loadgen.PhaseSpec{
			{Kind: loadgen.PhaseAddVertices, Batches: 1, Iterations: 3},
		},
		Cycles: 1,
		Cycle: []loadgen.PhaseSpec{
			{Kind: loadgen.PhaseAddEdges, Batches: 1, Iterations: 2},
		},
	}
	recorder := &eventRecorder{}
	driver, err := loadgen.NewPhaseDriver(engine, plan, loadgen.WithObserver(loadgen.ObserverFunc(
		func(ctx context.Context, event loadgen.Event) {
			if started, ok := event.(loadgen.PhaseStarted); ok && started.Phase == loadgen.PhaseAddEdges {
				engine.FailCommits(5, graphstore.ErrWriteConflict)
			}
			recorder.OnEvent(ctx, event)
		},
	)))
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2*2*1*4), summary.EdgesAdded)
	assert.Equal(t, int64(2*2*1*4), summary.StoreEdges)
	assert.Equal(t, int64(5), summary.Retries)
}
