package postgresengine

import (
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithTableNames sets the vertex and edge table names for the Engine.
func WithTableNames(vertexTable, edgeTable string) Option {
	return func(e *Engine) error {
		if vertexTable == "" || edgeTable == "" {
			return graphstore.ErrEmptyTableName
		}

		e.vertexTable = vertexTable
		e.edgeTable = edgeTable

		return nil
	}
}

// WithSchemaBootstrap makes Startup create missing tables and indexes.
func WithSchemaBootstrap() Option {
	return func(e *Engine) error {
		e.bootstrapSchema = true
		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: startup, shutdown, purge (production-safe)
// Warn level: write conflicts, refused shutdowns
// Error level: Critical failures that cause operation failures.
func WithLogger(logger graphstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger graphstore.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// The collector receives commit durations, write conflicts and database errors.
func WithMetrics(collector graphstore.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
// Startup and Shutdown are traced.
func WithTracing(collector graphstore.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}
