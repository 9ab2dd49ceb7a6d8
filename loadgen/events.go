package loadgen

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// Event is emitted by the PhaseDriver and the BatchCoordinator to report progress.
type Event interface {
	EventName() string
}

// Observer receives events synchronously on the emitting goroutine. WorkerProgress events are
// emitted concurrently by the workers of a batch, so implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ctx context.Context, event Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// RunStarted is emitted once before the first phase.
type RunStarted struct {
	RunID uuid.UUID
	Plan  Plan
}

// CycleStarted is emitted before each repetition of the cycle phases.
type CycleStarted struct {
	Cycle  int
	Cycles int
}

// PhaseStarted is emitted before the first batch of a phase.
type PhaseStarted struct {
	Phase      PhaseKind
	Cycle      int
	Batches    int
	Iterations int
}

// PhaseCompleted is emitted after the last batch of a phase.
type PhaseCompleted struct {
	Phase        PhaseKind
	Cycle        int
	Duration     time.Duration
	RegistrySize int
}

// BatchStarted is emitted after the snapshot was taken and before the workers are released.
type BatchStarted struct {
	Phase        PhaseKind
	Cycle        int
	Batch        int
	Workers      int
	SnapshotSize int
}

// BatchCompleted is emitted after the batch was merged and the store was restarted.
type BatchCompleted struct {
	Phase        PhaseKind
	Cycle        int
	Batch        int
	Added        int
	Deleted      int
	Edges        int64
	Retries      int64
	Duration     time.Duration
	OpsPerSecond float64
	RegistrySize int
}

// WorkerProgress is emitted by a worker every time it completed another progress interval of operations.
type WorkerProgress struct {
	Phase      PhaseKind
	Batch      int
	Worker     int
	Task       string
	Operations int64
}

// RunCompleted is emitted once after the final counts were taken.
type RunCompleted struct {
	Summary Summary
}

// EventName implements Event.
func (RunStarted) EventName() string { return "RunStarted" }

// EventName implements Event.
func (CycleStarted) EventName() string { return "CycleStarted" }

// EventName implements Event.
func (PhaseStarted) EventName() string { return "PhaseStarted" }

// EventName implements Event.
func (PhaseCompleted) EventName() string { return "PhaseCompleted" }

// EventName implements Event.
func (BatchStarted) EventName() string { return "BatchStarted" }

// EventName implements Event.
func (BatchCompleted) EventName() string { return "BatchCompleted" }

// EventName implements Event.
func (WorkerProgress) EventName() string { return "WorkerProgress" }

// EventName implements Event.
func (RunCompleted) EventName() string { return "RunCompleted" }

// LoggingObserver writes every event as one log line.
type LoggingObserver struct {
	instrumentation
}

// NewLoggingObserver creates an Observer that logs through logger. A ContextualLogger is used
// with the event's context, so log lines carry trace correlation when tracing is enabled.
func NewLoggingObserver(logger graphstore.Logger) *LoggingObserver {
	o := &LoggingObserver{}
	if contextual, ok := logger.(graphstore.ContextualLogger); ok {
		o.contextualLogger = contextual
	}
	o.logger = logger

	return o
}

// OnEvent implements Observer.
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	switch e := event.(type) {
	case RunStarted:
		o.logInfo(ctx, logMsgRunStarted,
			logAttrRunID, e.RunID.String(),
			logAttrWorkers, e.Plan.Workers,
			logAttrCycles, e.Plan.Cycles,
			logAttrBatches, e.Plan.Batches(),
		)

	case CycleStarted:
		o.logInfo(ctx, logMsgCycleStarted, logAttrCycle, e.Cycle, logAttrCycles, e.Cycles)

	case PhaseStarted:
		o.logInfo(ctx, logMsgPhaseStarted,
			logAttrPhase, string(e.Phase),
			logAttrCycle, e.Cycle,
			logAttrBatches, e.Batches,
			logAttrIterations, e.Iterations,
		)

	case PhaseCompleted:
		o.logInfo(ctx, logMsgPhaseCompleted,
			logAttrPhase, string(e.Phase),
			logAttrCycle, e.Cycle,
			logAttrRegistrySize, e.RegistrySize,
			logAttrDurationMS, toMilliseconds(e.Duration),
		)

	case BatchStarted:
		o.logDebug(ctx, logMsgBatchStarted,
			logAttrPhase, string(e.Phase),
			logAttrCycle, e.Cycle,
			logAttrBatch, e.Batch,
			logAttrWorkers, e.Workers,
			logAttrSnapshotSize, e.SnapshotSize,
		)

	case BatchCompleted:
		o.logInfo(ctx, logMsgBatchCompleted,
			logAttrPhase, string(e.Phase),
			logAttrCycle, e.Cycle,
			logAttrBatch, e.Batch,
			logAttrAdded, e.Added,
			logAttrDeleted, e.Deleted,
			logAttrEdges, e.Edges,
			logAttrRetries, e.Retries,
			logAttrRegistrySize, e.RegistrySize,
			logAttrOpsPerSecond, e.OpsPerSecond,
			logAttrDurationMS, toMilliseconds(e.Duration),
		)

	case WorkerProgress:
		o.logInfo(ctx, logMsgWorkerProgress,
			logAttrPhase, string(e.Phase),
			logAttrBatch, e.Batch,
			logAttrWorker, e.Worker,
			logAttrTask, e.Task,
			logAttrOperations, e.Operations,
		)

	case RunCompleted:
		s := e.Summary
		o.logInfo(ctx, logMsgRunCompleted,
			logAttrRunID, s.RunID.String(),
			logAttrBatches, s.Batches,
			logAttrAdded, s.VerticesAdded,
			logAttrDeleted, s.VerticesDeleted,
			logAttrEdges, s.EdgesAdded,
			logAttrRetries, s.Retries,
			logAttrRegistrySize, s.RegistrySize,
			logAttrIDsIssued, s.IDsIssued,
			logAttrReopens, s.Reopens,
			logAttrStoreVertices, s.StoreVertices,
			logAttrStoreEdges, s.StoreEdges,
			logAttrDurationMS, toMilliseconds(s.Duration),
		)
	}
}
