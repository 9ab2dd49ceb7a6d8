package badgerengine

import (
	"errors"
	"log/slog"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// ErrInvalidGCDiscardRatio is returned when the value log discard ratio is outside (0, 1).
var ErrInvalidGCDiscardRatio = errors.New("value log discard ratio must be between 0 and 1")

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
//
// Debug level: session commits and rollbacks
// Info level: startup, shutdown, purge
// Warn level: write conflicts, value log GC problems
// Error level: failures that abort an operation.
func WithLogger(logger graphstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
func WithContextualLogger(logger graphstore.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// It receives commit durations, write conflicts and lifecycle transitions.
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

// WithSyncWrites makes every commit wait for the value log fsync.
func WithSyncWrites(sync bool) Option {
	return func(e *Engine) error {
		e.syncWrites = sync
		return nil
	}
}

// WithBadgerLogger routes BadgerDB's internal log output to the given slog.Logger.
// Without it BadgerDB's own logging is disabled.
func WithBadgerLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		e.badgerLogger = logger
		return nil
	}
}

// WithValueLogGC runs value log garbage collection on Shutdown
// whenever at least ratio of a value log file is discardable.
func WithValueLogGC(ratio float64) Option {
	return func(e *Engine) error {
		if ratio <= 0 || ratio >= 1 {
			return ErrInvalidGCDiscardRatio
		}

		e.gcDiscardRatio = ratio

		return nil
	}
}
