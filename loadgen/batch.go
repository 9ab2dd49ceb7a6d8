package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// TaskFactory builds the task of one worker. All tasks of a batch share the snapshot and the gate.
type TaskFactory func(w worker, snapshot Snapshot) (Task, error)

// BatchSpec describes one batch.
type BatchSpec struct {
	Phase   PhaseKind
	Cycle   int
	Index   int
	Workers int
	Tasks   TaskFactory
}

// BatchCoordinator runs batches: it fans out the workers, joins them, merges their results into the
// Registry and restarts the store. Batches must not run concurrently.
type BatchCoordinator struct {
	registry  *Registry
	lifecycle *Lifecycle
	ids       *IDGenerator
	settings  *settings

	batches uint64
}

// NewBatchCoordinator creates a coordinator that merges into registry and restarts through lifecycle.
func NewBatchCoordinator(registry *Registry, lifecycle *Lifecycle, ids *IDGenerator, options ...Option) (*BatchCoordinator, error) {
	s, err := newSettings(options...)
	if err != nil {
		return nil, err
	}

	return newBatchCoordinator(registry, lifecycle, ids, s), nil
}

func newBatchCoordinator(registry *Registry, lifecycle *Lifecycle, ids *IDGenerator, s *settings) *BatchCoordinator {
	return &BatchCoordinator{registry: registry, lifecycle: lifecycle, ids: ids, settings: s}
}

// VertexAdders returns a factory that gives every worker its own label shard.
func (c *BatchCoordinator) VertexAdders(shards [][]graphstore.TypeLabel, iterations int) TaskFactory {
	return func(w worker, _ Snapshot) (Task, error) {
		if w.ordinal >= len(shards) {
			return nil, fmt.Errorf("%w: no label shard for worker %d", ErrInvalidPlan, w.ordinal)
		}

		w.task = taskVertexAdder

		return &VertexAdder{worker: w, Labels: shards[w.ordinal], Iterations: iterations, ids: c.ids}, nil
	}
}

// EdgeAdders returns a factory that gives every worker its own label shard and the batch snapshot.
func (c *BatchCoordinator) EdgeAdders(shards [][]graphstore.TypeLabel, iterations, fanOut int) TaskFactory {
	return func(w worker, snapshot Snapshot) (Task, error) {
		if w.ordinal >= len(shards) {
			return nil, fmt.Errorf("%w: no label shard for worker %d", ErrInvalidPlan, w.ordinal)
		}

		w.task = taskEdgeAdder

		return &EdgeAdder{worker: w, Labels: shards[w.ordinal], Iterations: iterations, FanOut: fanOut, snapshot: snapshot}, nil
	}
}

// VertexDeleters returns a factory for deleters that share the batch snapshot.
// The snapshot must hold at least workers × iterations ids, otherwise the deleters could never finish.
func (c *BatchCoordinator) VertexDeleters(workers, iterations int) TaskFactory {
	return func(w worker, snapshot Snapshot) (Task, error) {
		if need := workers * iterations; snapshot.Len() < need {
			return nil, fmt.Errorf("%w: %d deletions requested, %d ids registered", ErrEmptySnapshot, need, snapshot.Len())
		}

		w.task = taskVertexDeleter

		return &VertexDeleter{worker: w, Iterations: iterations, snapshot: snapshot}, nil
	}
}

// RunBatch runs one batch to completion.
//
// The first fatal worker error cancels the siblings and aborts the batch: nothing is merged and the
// store is not restarted. Otherwise the joined result is merged into the Registry and the store is
// restarted before RunBatch returns.
func (c *BatchCoordinator) RunBatch(ctx context.Context, spec BatchSpec) (*BatchResult, error) {
	seq := c.batches
	c.batches++

	snapshot := c.registry.Snapshot()
	gate := NewGate()

	ctx, span := c.settings.startSpan(ctx, spanNameBatch, map[string]string{
		labelPhase:     string(spec.Phase),
		attrCycle:      itoa(spec.Cycle),
		attrBatchIndex: itoa(spec.Index),
		attrWorkers:    itoa(spec.Workers),
	})
	start := time.Now()

	result, err := c.runBatch(ctx, spec, seq, snapshot, gate)

	duration := time.Since(start)
	registrySize := c.registry.Len()
	c.settings.recordBatch(ctx, string(spec.Phase), duration, err, registrySize)

	if err != nil {
		c.settings.finishSpan(span, statusAborted, err, nil)
		c.settings.logError(ctx, logMsgBatchAborted, err,
			logAttrPhase, string(spec.Phase),
			logAttrCycle, spec.Cycle,
			logAttrBatch, spec.Index,
		)

		return nil, fmt.Errorf("%s batch %d of cycle %d: %w", spec.Phase, spec.Index, spec.Cycle, err)
	}

	c.settings.finishSpan(span, statusSuccess, nil, map[string]string{
		attrOperations:   fmt.Sprint(result.Operations()),
		attrRegistrySize: itoa(registrySize),
	})

	c.settings.emit(ctx, BatchCompleted{
		Phase:        spec.Phase,
		Cycle:        spec.Cycle,
		Batch:        spec.Index,
		Added:        len(result.Added),
		Deleted:      len(result.Deleted),
		Edges:        result.Edges,
		Retries:      result.Retries,
		Duration:     duration,
		OpsPerSecond: opsPerSecond(result.Operations(), duration),
		RegistrySize: registrySize,
	})

	return result, nil
}

func (c *BatchCoordinator) runBatch(ctx context.Context, spec BatchSpec, seq uint64, snapshot Snapshot, gate *Gate) (*BatchResult, error) {
	tasks := make([]Task, spec.Workers)
	for ordinal := range spec.Workers {
		task, err := spec.Tasks(worker{
			ordinal:   ordinal,
			phase:     spec.Phase,
			batch:     spec.Index,
			gate:      gate,
			lifecycle: c.lifecycle,
			rng:       rand.New(rand.NewPCG(c.settings.seed, seq<<16|uint64(ordinal))), //nolint:gosec // load pattern randomness
			settings:  c.settings,
		}, snapshot)
		if err != nil {
			return nil, err
		}

		tasks[ordinal] = task
	}

	c.settings.emit(ctx, BatchStarted{
		Phase:        spec.Phase,
		Cycle:        spec.Cycle,
		Batch:        spec.Index,
		Workers:      spec.Workers,
		SnapshotSize: snapshot.Len(),
	})

	results := make([]WorkerResult, len(tasks))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, task := range tasks {
		group.Go(func() error {
			result, err := task.Run(groupCtx)
			results[i] = result

			return err
		})
	}

	gate.Release()

	if err := group.Wait(); err != nil {
		return nil, err
	}

	batch := JoinResults(results...)

	if err := c.registry.Merge(batch); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if err := c.lifecycle.Reopen(ctx); err != nil {
		return nil, err
	}

	return batch, nil
}

func opsPerSecond(operations int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}

	return float64(operations) / d.Seconds()
}
