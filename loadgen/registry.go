package loadgen

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
)

// Registry is the set of RecordIDs believed present in the store.
// Between batches it equals the ids ever added minus the ids confirmed deleted.
// Only the BatchCoordinator mutates it, workers read an immutable Snapshot.
type Registry struct {
	mu  sync.RWMutex
	ids map[RecordID]struct{}
}

// NewRegistry creates a Registry seeded with ids.
func NewRegistry(ids ...RecordID) *Registry {
	r := &Registry{ids: make(map[RecordID]struct{}, len(ids))}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}

	return r
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ids)
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id RecordID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.ids[id]

	return ok
}

// Snapshot returns an immutable, sorted copy of the registered ids.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	ids := make([]RecordID, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)

	return Snapshot{ids: ids}
}

// Merge applies a BatchResult: additions are unioned in and deletions subtracted.
// The result is validated as a whole before anything is applied, so a rejected merge leaves the
// Registry untouched. A BatchResult can be merged only once.
func (r *Registry) Merge(result *BatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if result.merged.Load() {
		return ErrBatchAlreadyMerged
	}

	if err := r.validate(result); err != nil {
		return err
	}

	if !result.merged.CompareAndSwap(false, true) {
		return ErrBatchAlreadyMerged
	}

	for _, id := range result.Deleted {
		delete(r.ids, id)
	}

	for _, id := range result.Added {
		r.ids[id] = struct{}{}
	}

	return nil
}

func (r *Registry) validate(result *BatchResult) error {
	deleted := make(map[RecordID]struct{}, len(result.Deleted))
	for _, id := range result.Deleted {
		if _, ok := r.ids[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownDeletion, id)
		}

		if _, ok := deleted[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateDeletion, id)
		}

		deleted[id] = struct{}{}
	}

	added := make(map[RecordID]struct{}, len(result.Added))
	for _, id := range result.Added {
		if _, ok := r.ids[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateAddition, id)
		}

		if _, ok := added[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateAddition, id)
		}

		added[id] = struct{}{}
	}

	return nil
}

// Snapshot is an immutable view of the Registry taken at batch start. It is safe for concurrent reads.
type Snapshot struct {
	ids []RecordID
}

// Len returns the number of ids in the snapshot.
func (s Snapshot) Len() int {
	return len(s.ids)
}

// Contains reports whether id was registered when the snapshot was taken.
func (s Snapshot) Contains(id RecordID) bool {
	_, ok := slices.BinarySearch(s.ids, id)

	return ok
}

// IDs returns a copy of the ids in ascending order.
func (s Snapshot) IDs() []RecordID {
	return slices.Clone(s.ids)
}

// Pick returns a uniformly random id of the snapshot. It must not be called on an empty snapshot.
func (s Snapshot) Pick(rng *rand.Rand) RecordID {
	return s.ids[rng.IntN(len(s.ids))]
}

// WorkerResult is what one worker produced during one batch.
type WorkerResult struct {
	Added   []RecordID
	Deleted []RecordID
	Edges   int64
	Retries int64
}

// BatchResult is the joined WorkerResults of one batch. It is consumed exactly once by Registry.Merge.
type BatchResult struct {
	Added   []RecordID
	Deleted []RecordID
	Edges   int64
	Retries int64

	merged atomic.Bool
}

// JoinResults combines worker results into one BatchResult.
func JoinResults(results ...WorkerResult) *BatchResult {
	joined := &BatchResult{}
	for _, result := range results {
		joined.Added = append(joined.Added, result.Added...)
		joined.Deleted = append(joined.Deleted, result.Deleted...)
		joined.Edges += result.Edges
		joined.Retries += result.Retries
	}

	return joined
}

// Operations returns the number of committed mutations the batch represents.
func (b *BatchResult) Operations() int64 {
	return int64(len(b.Added)) + int64(len(b.Deleted)) + b.Edges
}

// Merged reports whether the result was merged into a Registry.
func (b *BatchResult) Merged() bool {
	return b.merged.Load()
}
