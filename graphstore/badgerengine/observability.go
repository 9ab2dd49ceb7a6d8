package badgerengine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	metricCommitDuration = "graphstore_commit_duration_seconds"
	metricWriteConflicts = "graphstore_write_conflicts_total"
	metricLifecycle      = "graphstore_lifecycle_transitions_total"
	metricOpenSessions   = "graphstore_open_sessions"

	spanNameStartup  = "graphstore.startup"
	spanNameShutdown = "graphstore.shutdown"

	labelEngine    = "engine"
	labelStatus    = "status"
	labelOperation = "operation"
	engineName     = "badger"

	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"
)

// logOperation logs operational information at info level if a logger is configured.
func (e *Engine) logOperation(ctx context.Context, action string, args ...any) {
	if e.logger != nil {
		e.logger.Info(logMsgOperation+action, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logDebug logs at debug level if a logger is configured.
func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

// logWarn logs at warn level if a logger is configured.
func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// logError logs error information at error level if a logger is configured.
func (e *Engine) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.logger != nil {
		e.logger.Error(msg, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

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

func (e *Engine) recordLifecycle(ctx context.Context, operation, status string) {
	graphstore.IncrementCounter(ctx, e.metricsCollector, metricLifecycle, map[string]string{
		labelEngine:    engineName,
		labelOperation: operation,
		labelStatus:    status,
	})
}

func (e *Engine) recordOpenSessions(ctx context.Context, n int64) {
	graphstore.RecordValue(ctx, e.metricsCollector, metricOpenSessions, float64(n), map[string]string{
		labelEngine: engineName,
	})
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, graphstore.SpanContext) {
	if e.tracingCollector == nil {
		return ctx, nil
	}

	return e.tracingCollector.StartSpan(ctx, name, map[string]string{
		labelEngine:    engineName,
		logAttrDataDir: e.dataDir,
	})
}

func (e *Engine) finishSpan(span graphstore.SpanContext, err error, d time.Duration) {
	if e.tracingCollector == nil || span == nil {
		return
	}

	status := statusSuccess
	attrs := map[string]string{logAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(d))}
	if err != nil {
		status = statusError
		attrs[logAttrError] = err.Error()
	}

	e.tracingCollector.FinishSpan(span, status, attrs)
}

// slogBadgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type slogBadgerLogger struct {
	logger *slog.Logger
}

func (l *slogBadgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *slogBadgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *slogBadgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *slogBadgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
