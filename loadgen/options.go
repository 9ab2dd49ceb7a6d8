package loadgen

import (
	"errors"
	"math/rand/v2"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const defaultProgressInterval = 10000

// ErrInvalidProgressInterval is returned when a non-positive progress interval is configured.
var ErrInvalidProgressInterval = errors.New("progress interval must be positive")

// Option configures a Lifecycle, BatchCoordinator or PhaseDriver using the functional options pattern.
// Each component uses the settings relevant to it and ignores the rest.
type Option func(*settings) error

type settings struct {
	instrumentation

	retryLimit       int
	newBackOff       func() backoff.BackOff
	limiter          *rate.Limiter
	seed             uint64
	progressInterval int64
}

func newSettings(options ...Option) (*settings, error) {
	s := &settings{
		seed:             rand.Uint64(), //nolint:gosec // load pattern randomness, not security relevant
		progressInterval: defaultProgressInterval,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// retryOptions returns the retry policy for one unit of work.
func (s *settings) retryOptions() []RetryOption {
	options := []RetryOption{WithMaxAttempts(s.retryLimit)}
	if s.newBackOff != nil {
		options = append(options, WithBackOff(s.newBackOff()))
	}

	return options
}

// WithLogger sets the logger for run progress and errors.
func WithLogger(logger graphstore.Logger) Option {
	return func(s *settings) error {
		s.logger = logger

		return nil
	}
}

// WithContextualLogger sets a context-aware logger. It takes precedence over WithLogger.
func WithContextualLogger(logger graphstore.ContextualLogger) Option {
	return func(s *settings) error {
		s.contextualLogger = logger

		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector graphstore.MetricsCollector) Option {
	return func(s *settings) error {
		s.metricsCollector = collector

		return nil
	}
}

// WithTracing sets the tracing collector.
func WithTracing(collector graphstore.TracingCollector) Option {
	return func(s *settings) error {
		s.tracingCollector = collector

		return nil
	}
}

// WithObserver adds an Observer for run, phase and batch events. It can be given more than once.
func WithObserver(observer Observer) Option {
	return func(s *settings) error {
		if observer == nil {
			return ErrNilObserver
		}

		s.observers = append(s.observers, observer)

		return nil
	}
}

// WithRetryLimit bounds the attempts of every retryable unit of work. Zero, the default, means unbounded.
func WithRetryLimit(attempts int) Option {
	return func(s *settings) error {
		if attempts < 0 {
			return ErrInvalidMaxAttempts
		}

		s.retryLimit = attempts

		return nil
	}
}

// WithRetryBackOff sets a factory for the delay policy between attempts.
// It is called once per unit of work, because backoff policies are stateful.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *settings) error {
		if newBackOff == nil {
			return ErrNilBackOff
		}

		s.newBackOff = newBackOff

		return nil
	}
}

// WithRate throttles all workers together to opsPerSecond store operations.
func WithRate(opsPerSecond float64, burst int) Option {
	return func(s *settings) error {
		if opsPerSecond <= 0 || burst <= 0 {
			return ErrInvalidRate
		}

		s.limiter = rate.NewLimiter(rate.Limit(opsPerSecond), burst)

		return nil
	}
}

// WithSeed makes the random picks of all workers reproducible.
func WithSeed(seed uint64) Option {
	return func(s *settings) error {
		s.seed = seed

		return nil
	}
}

// WithProgressInterval sets after how many operations a worker reports a WorkerProgress event.
func WithProgressInterval(operations int64) Option {
	return func(s *settings) error {
		if operations <= 0 {
			return ErrInvalidProgressInterval
		}

		s.progressInterval = operations

		return nil
	}
}
