// Package loadgen drives phased, concurrent write and delete traffic against a graphstore.Engine.
//
// A PhaseDriver runs a Plan as a sequence of phases. Each phase is a sequence of batches, and each
// batch fans out a fixed number of workers that are released together through a gate. After all
// workers of a batch joined, their results are merged into the Registry, the set of logical record
// ids believed present in the store, and the store is restarted through the Lifecycle.
//
// Workers never consult the Registry directly. They work on an immutable Snapshot taken at batch
// start and resolve races with siblings by redoing their unit of work (see Retry).
package loadgen
