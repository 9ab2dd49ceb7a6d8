package graphstore

import (
	"context"
	"time"
)

// Logger receives operational logs from engines and the load generator.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger is the context-aware variant of Logger.
// Implementations can use the context to attach trace and span IDs to every record.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector receives durations, counters and gauge values.
// It has no dependency on any metrics backend; see the oteladapters package for OpenTelemetry.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// Callers use the context variants when a collector implements them and fall back to MetricsCollector otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector starts and finishes spans around batches and engine restarts.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// RecordDuration records a duration, preferring the context-aware method when the collector provides it.
func RecordDuration(ctx context.Context, c MetricsCollector, metric string, d time.Duration, labels map[string]string) {
	if c == nil {
		return
	}

	if cc, ok := c.(ContextualMetricsCollector); ok {
		cc.RecordDurationContext(ctx, metric, d, labels)
		return
	}

	c.RecordDuration(metric, d, labels)
}

// IncrementCounter increments a counter, preferring the context-aware method when the collector provides it.
func IncrementCounter(ctx context.Context, c MetricsCollector, metric string, labels map[string]string) {
	if c == nil {
		return
	}

	if cc, ok := c.(ContextualMetricsCollector); ok {
		cc.IncrementCounterContext(ctx, metric, labels)
		return
	}

	c.IncrementCounter(metric, labels)
}

// RecordValue records a gauge value, preferring the context-aware method when the collector provides it.
func RecordValue(ctx context.Context, c MetricsCollector, metric string, value float64, labels map[string]string) {
	if c == nil {
		return
	}

	if cc, ok := c.(ContextualMetricsCollector); ok {
		cc.RecordValueContext(ctx, metric, value, labels)
		return
	}

	c.RecordValue(metric, value, labels)
}
