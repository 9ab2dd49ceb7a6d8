package loadgen

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	metricBatchDuration     = "loadgen_batch_duration_seconds"
	metricBatches           = "loadgen_batches_total"
	metricRetries           = "loadgen_retries_total"
	metricRegistrySize      = "loadgen_registry_size"
	metricWorkerOperations  = "loadgen_worker_operations_total"
	metricRestartDuration   = "graphstore_restart_duration_seconds"
	metricRestarts          = "graphstore_restarts_total"
	spanNameBatch           = "loadgen.batch"
	spanNameRestart         = "graphstore.restart"
	statusSuccess           = "success"
	statusError             = "error"
	statusAborted           = "aborted"
	logMsgRunStarted        = "load run started"
	logMsgRunCompleted      = "load run completed"
	logMsgRunAborted        = "load run aborted"
	logMsgCycleStarted      = "cycle started"
	logMsgPhaseStarted      = "phase started"
	logMsgPhaseCompleted    = "phase completed"
	logMsgBatchStarted      = "batch started"
	logMsgBatchCompleted    = "batch completed"
	logMsgBatchAborted      = "batch aborted"
	logMsgWorkerProgress    = "worker progress"
	logMsgStoreRestarted    = "store restarted"
	logMsgRestartFailed     = "store restart failed"
	logMsgCloseFailed       = "closing store failed"
	logAttrRunID            = "run_id"
	logAttrPhase            = "phase"
	logAttrCycle            = "cycle"
	logAttrCycles           = "cycles"
	logAttrBatch            = "batch"
	logAttrBatches          = "batches"
	logAttrIterations       = "iterations"
	logAttrWorkers          = "workers"
	logAttrWorker           = "worker"
	logAttrTask             = "task"
	logAttrOperations       = "operations"
	logAttrSnapshotSize     = "snapshot_size"
	logAttrRegistrySize     = "registry_size"
	logAttrAdded            = "added"
	logAttrDeleted          = "deleted"
	logAttrEdges            = "edges"
	logAttrRetries          = "retries"
	logAttrOpsPerSecond     = "ops_per_second"
	logAttrDurationMS       = "duration_ms"
	logAttrReopens          = "reopens"
	logAttrStoreVertices    = "store_vertices"
	logAttrStoreEdges       = "store_edges"
	logAttrIDsIssued        = "ids_issued"
	logAttrError            = "error"
	labelPhase              = "phase"
	labelTask               = "task"
	labelStatus             = "status"
	labelReason             = "reason"
	labelOperation          = "operation"
	operationRestart        = "restart"
	operationClose          = "close"
	taskVertexAdder         = "vertex-adder"
	taskEdgeAdder           = "edge-adder"
	taskVertexDeleter       = "vertex-deleter"
	attrBatchIndex          = "batch_index"
	attrCycle               = "cycle"
	attrWorkers             = "workers"
	attrOperations          = "operations"
	attrRegistrySize        = "registry_size"
	attrErrorType           = "error_type"
)

// instrumentation bundles the optional observability hooks. All of them may be nil.
type instrumentation struct {
	logger           graphstore.Logger
	contextualLogger graphstore.ContextualLogger
	metricsCollector graphstore.MetricsCollector
	tracingCollector graphstore.TracingCollector
	observers        []Observer
}

func (i *instrumentation) logInfo(ctx context.Context, msg string, args ...any) {
	if i.contextualLogger != nil {
		i.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if i.logger != nil {
		i.logger.Info(msg, args...)
	}
}

func (i *instrumentation) logDebug(ctx context.Context, msg string, args ...any) {
	if i.contextualLogger != nil {
		i.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}

func (i *instrumentation) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, logAttrError, err.Error())

	if i.contextualLogger != nil {
		i.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if i.logger != nil {
		i.logger.Error(msg, args...)
	}
}

func (i *instrumentation) emit(ctx context.Context, event Event) {
	for _, observer := range i.observers {
		observer.OnEvent(ctx, event)
	}
}

func (i *instrumentation) countRetry(ctx context.Context, phase, task string, err error) {
	graphstore.IncrementCounter(ctx, i.metricsCollector, metricRetries, map[string]string{
		labelPhase:  phase,
		labelTask:   task,
		labelReason: errorType(err),
	})
}

func (i *instrumentation) countOperation(ctx context.Context, phase, task string) {
	graphstore.IncrementCounter(ctx, i.metricsCollector, metricWorkerOperations, map[string]string{
		labelPhase: phase,
		labelTask:  task,
	})
}

func (i *instrumentation) recordBatch(ctx context.Context, phase string, d time.Duration, err error, registrySize int) {
	status := statusSuccess
	if err != nil {
		status = statusAborted
	}
	labels := map[string]string{labelPhase: phase, labelStatus: status}

	graphstore.RecordDuration(ctx, i.metricsCollector, metricBatchDuration, d, labels)
	graphstore.IncrementCounter(ctx, i.metricsCollector, metricBatches, labels)

	if err == nil {
		graphstore.RecordValue(ctx, i.metricsCollector, metricRegistrySize, float64(registrySize), nil)
	}
}

func (i *instrumentation) recordRestart(ctx context.Context, operation string, d time.Duration, err error) {
	labels := map[string]string{labelOperation: operation, labelStatus: statusOf(err)}

	graphstore.RecordDuration(ctx, i.metricsCollector, metricRestartDuration, d, labels)
	graphstore.IncrementCounter(ctx, i.metricsCollector, metricRestarts, labels)
}

func (i *instrumentation) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, graphstore.SpanContext) {
	if i.tracingCollector == nil {
		return ctx, nil
	}

	return i.tracingCollector.StartSpan(ctx, name, attrs)
}

func (i *instrumentation) finishSpan(span graphstore.SpanContext, status string, err error, attrs map[string]string) {
	if i.tracingCollector == nil || span == nil {
		return
	}

	if err != nil {
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs[attrErrorType] = errorType(err)
	}

	i.tracingCollector.FinishSpan(span, status, attrs)
}

func statusOf(err error) string {
	if err != nil {
		return statusError
	}

	return statusSuccess
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
