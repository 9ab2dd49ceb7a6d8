package loadgen

import "errors"

// ErrLifecycleClosed is returned when a handle is requested while the store is not open.
var ErrLifecycleClosed = errors.New("store lifecycle is closed")

// ErrHandlesStillOpen is returned when the store is closed or restarted while handles are open.
var ErrHandlesStillOpen = errors.New("store handles are still open")

// ErrRestartFailed wraps a failure to bring the store back up. It is fatal for the run.
var ErrRestartFailed = errors.New("store restart failed")

// ErrRegistryDiverged is returned when an id from the snapshot cannot be found during an edge phase.
var ErrRegistryDiverged = errors.New("registry diverged from store contents")

// ErrEmptySnapshot is returned when a worker needs ids to pick from but the snapshot is empty.
var ErrEmptySnapshot = errors.New("snapshot is empty")

// ErrBatchAlreadyMerged is returned when a BatchResult is merged a second time.
var ErrBatchAlreadyMerged = errors.New("batch result was already merged")

// ErrUnknownDeletion is returned when a batch reports the deletion of an id that is not registered.
var ErrUnknownDeletion = errors.New("deleted id is not registered")

// ErrDuplicateDeletion is returned when a batch reports the same deleted id more than once.
var ErrDuplicateDeletion = errors.New("id was deleted more than once")

// ErrDuplicateAddition is returned when a batch reports an added id that is already registered.
var ErrDuplicateAddition = errors.New("added id is already registered")

// ErrRetriesExhausted is returned when a bounded retry policy gives up.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ErrNilEngine is returned when a Lifecycle is created without an engine.
var ErrNilEngine = errors.New("engine must not be nil")

// ErrInvalidPlan is returned when a Plan fails validation.
var ErrInvalidPlan = errors.New("invalid plan")

// ErrInvalidMaxAttempts is returned when a negative attempt limit is configured.
var ErrInvalidMaxAttempts = errors.New("max attempts must not be negative")

// ErrNilBackOff is returned when a nil backoff policy is configured.
var ErrNilBackOff = errors.New("backoff policy must not be nil")

// ErrNilRetryable is returned when a nil retry classifier is configured.
var ErrNilRetryable = errors.New("retryable classifier must not be nil")

// ErrNilObserver is returned when a nil Observer is configured.
var ErrNilObserver = errors.New("observer must not be nil")

// ErrInvalidRate is returned when a non-positive throttle rate is configured.
var ErrInvalidRate = errors.New("rate must be positive")
