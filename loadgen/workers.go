package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// errLookupMiss signals that a picked id is no longer in the store. Deleters retry it with a new pick.
var errLookupMiss = errors.New("picked id not found in store")

// Task is one worker of a batch.
type Task interface {
	Run(ctx context.Context) (WorkerResult, error)
}

// Gate releases all workers of a batch at once.
type Gate struct {
	ch   chan struct{}
	once sync.Once
}

// NewGate returns a gate that holds workers until Release.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Release opens the gate. It is safe to call more than once.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.ch) })
}

// Wait blocks until the gate is released or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker carries what every task needs besides its own inputs.
type worker struct {
	ordinal   int
	phase     PhaseKind
	batch     int
	task      string
	gate      *Gate
	lifecycle *Lifecycle
	rng       *rand.Rand
	settings  *settings

	operations int64
	retries    int64
}

// begin waits for the gate and opens the worker's handle for the batch.
func (w *worker) begin(ctx context.Context) (*StoreHandle, error) {
	if err := w.gate.Wait(ctx); err != nil {
		return nil, err
	}

	return w.lifecycle.OpenHandle(ctx)
}

// throttle blocks until the shared rate limiter grants one operation.
func (w *worker) throttle(ctx context.Context) error {
	if w.settings.limiter == nil {
		return nil
	}

	return w.settings.limiter.Wait(ctx)
}

// completed counts one committed operation and reports progress at every interval.
func (w *worker) completed(ctx context.Context) {
	w.operations++
	w.settings.countOperation(ctx, string(w.phase), w.task)

	if w.operations%w.settings.progressInterval == 0 {
		w.settings.emit(ctx, WorkerProgress{
			Phase:      w.phase,
			Batch:      w.batch,
			Worker:     w.ordinal,
			Task:       w.task,
			Operations: w.operations,
		})
	}
}

// retry runs unit under the run's retry policy. Failed attempts are rolled back before the next one.
func (w *worker) retry(ctx context.Context, handle *StoreHandle, retryable func(error) bool, unit RetryableFunc) error {
	options := append(w.settings.retryOptions(),
		WithRetryable(retryable),
		WithOnRetry(func(_ int, err error) {
			w.retries++
			w.settings.countRetry(ctx, string(w.phase), w.task, err)
		}),
	)

	return Retry(ctx, func(ctx context.Context) error {
		err := unit(ctx)
		if err != nil {
			if rollbackErr := handle.Rollback(ctx); rollbackErr != nil {
				return errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
			}
		}

		return err
	}, options...)
}

func (w *worker) fail(err error) error {
	return fmt.Errorf("%s %d: %w", w.task, w.ordinal, err)
}

// VertexAdder creates Iterations × len(Labels) vertices, each with a fresh RecordID, and commits
// every vertex on its own. Any error is fatal.
type VertexAdder struct {
	worker

	Labels     []graphstore.TypeLabel
	Iterations int
	ids        *IDGenerator
}

// Run implements Task.
func (a *VertexAdder) Run(ctx context.Context) (result WorkerResult, err error) {
	handle, err := a.begin(ctx)
	if err != nil {
		return WorkerResult{}, a.fail(err)
	}
	defer func() { err = errors.Join(err, handle.Close(ctx)) }()

	added := make([]RecordID, 0, a.Iterations*len(a.Labels))

	for range a.Iterations {
		for _, label := range a.Labels {
			if err = a.throttle(ctx); err != nil {
				return WorkerResult{}, a.fail(err)
			}

			var id RecordID
			if id, err = a.ids.Next(); err != nil {
				return WorkerResult{}, a.fail(err)
			}

			if _, err = handle.AddVertex(ctx, label, id); err != nil {
				return WorkerResult{}, a.fail(fmt.Errorf("add vertex %d: %w", id, err))
			}

			if err = handle.Commit(ctx); err != nil {
				return WorkerResult{}, a.fail(fmt.Errorf("commit vertex %d: %w", id, err))
			}

			added = append(added, id)
			a.completed(ctx)
		}
	}

	return WorkerResult{Added: added}, nil
}

// EdgeAdder creates, per label step, FanOut edges from one random vertex of the snapshot to random
// vertices of the snapshot and commits them as one unit. Conflicts redo the whole unit.
type EdgeAdder struct {
	worker

	Labels     []graphstore.TypeLabel
	Iterations int
	FanOut     int
	snapshot   Snapshot
}

// Run implements Task.
func (a *EdgeAdder) Run(ctx context.Context) (result WorkerResult, err error) {
	if a.Iterations > 0 && len(a.Labels) > 0 && a.snapshot.Len() == 0 {
		return WorkerResult{}, a.fail(ErrEmptySnapshot)
	}

	handle, err := a.begin(ctx)
	if err != nil {
		return WorkerResult{}, a.fail(err)
	}
	defer func() { err = errors.Join(err, handle.Close(ctx)) }()

	var edges int64

	for range a.Iterations {
		for _, label := range a.Labels {
			if err = a.throttle(ctx); err != nil {
				return WorkerResult{}, a.fail(err)
			}

			err = a.retry(ctx, handle, graphstore.IsTransient, func(ctx context.Context) error {
				return a.fanOut(ctx, handle, label)
			})
			if err != nil {
				return WorkerResult{}, a.fail(err)
			}

			edges += int64(a.FanOut)
			a.completed(ctx)
		}
	}

	return WorkerResult{Edges: edges, Retries: a.retries}, nil
}

func (a *EdgeAdder) fanOut(ctx context.Context, handle *StoreHandle, label graphstore.TypeLabel) error {
	from, err := a.resolve(ctx, handle)
	if err != nil {
		return err
	}

	for range a.FanOut {
		to, err := a.resolve(ctx, handle)
		if err != nil {
			return err
		}

		if err = handle.AddEdge(ctx, label, from, to); err != nil {
			return err
		}
	}

	return handle.Commit(ctx)
}

// resolve looks up a random snapshot id. No deletions run while edges are added, so a miss is fatal.
func (a *EdgeAdder) resolve(ctx context.Context, handle *StoreHandle) (graphstore.VertexHandle, error) {
	id := a.snapshot.Pick(a.rng)

	v, ok, err := handle.FindVertex(ctx, id)
	if err != nil {
		return graphstore.VertexHandle{}, err
	}

	if !ok {
		return graphstore.VertexHandle{}, fmt.Errorf("%w: id %d", ErrRegistryDiverged, id)
	}

	return v, nil
}

// VertexDeleter deletes Iterations random vertices of the snapshot, one commit each.
// Picks that a sibling deleted first are retried with a new pick.
type VertexDeleter struct {
	worker

	Iterations int
	snapshot   Snapshot
}

// Run implements Task.
func (d *VertexDeleter) Run(ctx context.Context) (result WorkerResult, err error) {
	if d.Iterations > 0 && d.snapshot.Len() == 0 {
		return WorkerResult{}, d.fail(ErrEmptySnapshot)
	}

	handle, err := d.begin(ctx)
	if err != nil {
		return WorkerResult{}, d.fail(err)
	}
	defer func() { err = errors.Join(err, handle.Close(ctx)) }()

	deleted := make([]RecordID, 0, d.Iterations)

	for range d.Iterations {
		if err = d.throttle(ctx); err != nil {
			return WorkerResult{}, d.fail(err)
		}

		var id RecordID
		err = d.retry(ctx, handle, isDeleteRetryable, func(ctx context.Context) error {
			id = d.snapshot.Pick(d.rng)

			return d.deleteOne(ctx, handle, id)
		})
		if err != nil {
			return WorkerResult{}, d.fail(err)
		}

		deleted = append(deleted, id)
		d.completed(ctx)
	}

	return WorkerResult{Deleted: deleted, Retries: d.retries}, nil
}

func (d *VertexDeleter) deleteOne(ctx context.Context, handle *StoreHandle, id RecordID) error {
	v, ok, err := handle.FindVertex(ctx, id)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: id %d", errLookupMiss, id)
	}

	if err = handle.DeleteVertex(ctx, v); err != nil {
		return err
	}

	return handle.Commit(ctx)
}

func isDeleteRetryable(err error) bool {
	return graphstore.IsTransient(err) || errors.Is(err, errLookupMiss)
}
