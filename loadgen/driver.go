package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// Summary reports the outcome of a completed run.
type Summary struct {
	RunID           uuid.UUID
	Duration        time.Duration
	Batches         int
	VerticesAdded   int64
	VerticesDeleted int64
	EdgesAdded      int64
	Retries         int64
	RegistrySize    int
	IDsIssued       uint64
	Reopens         int
	StoreVertices   int64
	StoreEdges      int64
}

// PhaseDriver runs a Plan against an engine.
type PhaseDriver struct {
	engine      graphstore.Engine
	plan        Plan
	settings    *settings
	lifecycle   *Lifecycle
	registry    *Registry
	ids         *IDGenerator
	coordinator *BatchCoordinator

	vertexShards [][]graphstore.TypeLabel
	edgeShards   [][]graphstore.TypeLabel
	summary      Summary
}

// NewPhaseDriver validates plan and wires a Lifecycle, an empty Registry, a fresh IDGenerator
// and a BatchCoordinator for engine. The engine must be shut down, Run starts it.
func NewPhaseDriver(engine graphstore.Engine, plan Plan, options ...Option) (*PhaseDriver, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if engine == nil {
		return nil, ErrNilEngine
	}

	s, err := newSettings(options...)
	if err != nil {
		return nil, err
	}

	lifecycle := newLifecycle(engine, s)
	registry := NewRegistry()
	ids := NewIDGenerator()
	coordinator := newBatchCoordinator(registry, lifecycle, ids, s)

	vertexShards, err := Shard(VertexLabels(plan.VertexLabels), plan.Workers)
	if err != nil {
		return nil, err
	}

	edgeShards, err := Shard(EdgeLabels(plan.EdgeLabels), plan.Workers)
	if err != nil {
		return nil, err
	}

	return &PhaseDriver{
		engine:       engine,
		plan:         plan,
		settings:     s,
		lifecycle:    lifecycle,
		registry:     registry,
		ids:          ids,
		coordinator:  coordinator,
		vertexShards: vertexShards,
		edgeShards:   edgeShards,
	}, nil
}

// Registry returns the registry of the run.
func (d *PhaseDriver) Registry() *Registry {
	return d.registry
}

// IDs returns the id generator of the run.
func (d *PhaseDriver) IDs() *IDGenerator {
	return d.ids
}

// Lifecycle returns the store lifecycle of the run.
func (d *PhaseDriver) Lifecycle() *Lifecycle {
	return d.lifecycle
}

// Run starts the store, runs the setup phases once and the cycle phases Cycles times, takes the
// final counts from the store and closes it. Any fatal error aborts the run, which cannot be resumed.
func (d *PhaseDriver) Run(ctx context.Context) (Summary, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}

	d.summary = Summary{RunID: runID}
	start := time.Now()

	if err = d.lifecycle.Start(ctx); err != nil {
		return Summary{}, err
	}

	d.settings.emit(ctx, RunStarted{RunID: runID, Plan: d.plan})

	if err = d.run(ctx); err != nil {
		d.settings.logError(ctx, logMsgRunAborted, err, logAttrRunID, runID.String())
		return Summary{}, errors.Join(err, d.lifecycle.Close(context.WithoutCancel(ctx)))
	}

	if err = d.finish(ctx, start); err != nil {
		return Summary{}, errors.Join(err, d.lifecycle.Close(context.WithoutCancel(ctx)))
	}

	if err = d.lifecycle.Close(ctx); err != nil {
		return Summary{}, err
	}

	d.settings.emit(ctx, RunCompleted{Summary: d.summary})

	return d.summary, nil
}

func (d *PhaseDriver) run(ctx context.Context) error {
	for _, phase := range d.plan.Setup {
		if err := d.runPhase(ctx, phase, 0); err != nil {
			return err
		}
	}

	for cycle := 1; cycle <= d.plan.Cycles; cycle++ {
		d.settings.emit(ctx, CycleStarted{Cycle: cycle, Cycles: d.plan.Cycles})

		for _, phase := range d.plan.Cycle {
			if err := d.runPhase(ctx, phase, cycle); err != nil {
				return err
			}
		}
	}

	return nil
}

func (d *PhaseDriver) runPhase(ctx context.Context, phase PhaseSpec, cycle int) error {
	d.settings.emit(ctx, PhaseStarted{Phase: phase.Kind, Cycle: cycle, Batches: phase.Batches, Iterations: phase.Iterations})
	start := time.Now()

	tasks := d.tasksFor(phase)

	for index := range phase.Batches {
		result, err := d.coordinator.RunBatch(ctx, BatchSpec{
			Phase:   phase.Kind,
			Cycle:   cycle,
			Index:   index,
			Workers: d.plan.Workers,
			Tasks:   tasks,
		})
		if err != nil {
			return err
		}

		d.summary.Batches++
		d.summary.VerticesAdded += int64(len(result.Added))
		d.summary.VerticesDeleted += int64(len(result.Deleted))
		d.summary.EdgesAdded += result.Edges
		d.summary.Retries += result.Retries
	}

	d.settings.emit(ctx, PhaseCompleted{
		Phase:        phase.Kind,
		Cycle:        cycle,
		Duration:     time.Since(start),
		RegistrySize: d.registry.Len(),
	})

	return nil
}

func (d *PhaseDriver) tasksFor(phase PhaseSpec) TaskFactory {
	switch phase.Kind {
	case PhaseAddEdges:
		return d.coordinator.EdgeAdders(d.edgeShards, phase.Iterations, d.plan.FanOut)
	case PhaseDeleteVertices:
		return d.coordinator.VertexDeleters(d.plan.Workers, phase.Iterations)
	default:
		return d.coordinator.VertexAdders(d.vertexShards, phase.Iterations)
	}
}

func (d *PhaseDriver) finish(ctx context.Context, start time.Time) error {
	vertices, err := d.engine.CountVertices(ctx)
	if err != nil {
		return fmt.Errorf("count vertices: %w", err)
	}

	edges, err := d.engine.CountEdges(ctx)
	if err != nil {
		return fmt.Errorf("count edges: %w", err)
	}

	d.summary.Duration = time.Since(start)
	d.summary.RegistrySize = d.registry.Len()
	d.summary.IDsIssued = d.ids.Issued()
	d.summary.Reopens = d.lifecycle.Reopens()
	d.summary.StoreVertices = vertices
	d.summary.StoreEdges = edges

	return nil
}
