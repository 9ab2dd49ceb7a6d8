package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// RetryableFunc is one attempt of a unit of work.
type RetryableFunc func(ctx context.Context) error

// RetryOption configures Retry using the functional options pattern.
type RetryOption func(*retryConfig) error

type retryConfig struct {
	maxAttempts int
	backOff     backoff.BackOff
	retryable   func(error) bool
	onRetry     func(attempt int, err error)
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the policy gives up.
//
// Default policy: unbounded attempts, no delay between attempts, and only
// graphstore.ErrWriteConflict and graphstore.ErrRecordMissing are retried.
// A cancelled context always stops the loop.
func Retry(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		backOff:   &backoff.ZeroBackOff{},
		retryable: graphstore.IsTransient,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	config.backOff.Reset()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !config.retryable(err) {
			return err
		}

		if config.maxAttempts > 0 && attempt >= config.maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		delay := config.backOff.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("%w after %d attempts, backoff stopped: %w", ErrRetriesExhausted, attempt, err)
		}

		if config.onRetry != nil {
			config.onRetry(attempt, err)
		}

		if delay > 0 {
			if err = sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithMaxAttempts limits the number of attempts. Zero means unbounded.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts < 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBackOff sets the delay policy between attempts. The policy is stateful, so every
// concurrent caller of Retry needs its own instance.
func WithBackOff(policy backoff.BackOff) RetryOption {
	return func(config *retryConfig) error {
		if policy == nil {
			return ErrNilBackOff
		}

		config.backOff = policy

		return nil
	}
}

// WithRetryable replaces the classifier that decides which errors are retried.
func WithRetryable(retryable func(error) bool) RetryOption {
	return func(config *retryConfig) error {
		if retryable == nil {
			return ErrNilRetryable
		}

		config.retryable = retryable

		return nil
	}
}

// WithOnRetry registers a hook that is called before every retry with the failed attempt number and its error.
func WithOnRetry(onRetry func(attempt int, err error)) RetryOption {
	return func(config *retryConfig) error {
		config.onRetry = onRetry

		return nil
	}
}

// errorType extracts a string representation of the error class for metrics labeling.
func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, graphstore.ErrWriteConflict):
		return "write_conflict"
	case errors.Is(err, graphstore.ErrRecordMissing):
		return "record_missing"
	case errors.Is(err, errLookupMiss):
		return "lookup_miss"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}
