package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	metricCommitDuration = "graphstore_commit_duration_seconds"
	metricWriteConflicts = "graphstore_write_conflicts_total"
	metricDatabaseErrors = "graphstore_database_errors_total"
	metricLifecycle      = "graphstore_lifecycle_transitions_total"

	spanNameStartup  = "graphstore.startup"
	spanNameShutdown = "graphstore.shutdown"

	labelEngine    = "engine"
	labelStatus    = "status"
	labelOperation = "operation"
	labelErrorType = "error_type"
	engineName     = "postgres"

	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (e *Engine) logOperation(ctx context.Context, action string, args ...any) {
	if e.logger != nil {
		e.logger.Info(logMsgOperation+action, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs at warn level if the logger is configured.
func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.logger != nil {
		e.logger.Error(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (e *Engine) recordCommit(ctx context.Context, d time.Duration, status string) {
	graphstore.RecordDuration(ctx, e.metricsCollector, metricCommitDuration, d, map[string]string{
		labelEngine: engineName,
		labelStatus: status,
	})

	if status == statusConflict {
		graphstore.IncrementCounter(ctx, e.metricsCollector, metricWriteConflicts, map[string]string{
			labelEngine: engineName,
		})
	}
}

func (e *Engine) recordErrorMetrics(ctx context.Context, operation string, err error) {
	graphstore.IncrementCounter(ctx, e.metricsCollector, metricDatabaseErrors, map[string]string{
		labelEngine:    engineName,
		labelOperation: operation,
		labelErrorType: errorType(err),
	})
}

func (e *Engine) recordLifecycle(ctx context.Context, operation string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	graphstore.IncrementCounter(ctx, e.metricsCollector, metricLifecycle, map[string]string{
		labelEngine:    engineName,
		labelOperation: operation,
		labelStatus:    status,
	})
}

// lifecycleTracingObserver encapsulates the span of one Startup or Shutdown.
type lifecycleTracingObserver struct {
	e     *Engine
	span  graphstore.SpanContext
	start time.Time
}

func (e *Engine) startLifecycleTracing(ctx context.Context, name string) (*lifecycleTracingObserver, context.Context) {
	o := &lifecycleTracingObserver{e: e, start: time.Now()}
	if e.tracingCollector == nil {
		return o, ctx
	}

	ctx, o.span = e.tracingCollector.StartSpan(ctx, name, map[string]string{
		labelEngine:        engineName,
		logAttrVertexTable: e.vertexTable,
		logAttrEdgeTable:   e.edgeTable,
	})

	return o, ctx
}

func (o *lifecycleTracingObserver) finish(err error) {
	if o.e.tracingCollector == nil || o.span == nil {
		return
	}

	status := statusSuccess
	attrs := map[string]string{logAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(time.Since(o.start)))}
	if err != nil {
		status = statusError
		attrs[labelErrorType] = errorType(err)
	}

	o.e.tracingCollector.FinishSpan(o.span, status, attrs)
}
