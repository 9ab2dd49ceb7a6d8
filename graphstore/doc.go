// Package graphstore provides the core abstractions for a typed graph store
// that is driven by the load generator.
//
// This package defines the interfaces every engine implementation satisfies,
// the handles returned for vertices and edges, and the error classes the
// load generator relies on to tell transient contention from real failures.
//
// Engine implementations:
//   - badgerengine: embedded store on top of BadgerDB, restart closes and reopens the data directory
//   - postgresengine: PostgreSQL store with pgx.Pool, sql.DB or sqlx.DB connections
//
// Key types:
//   - Engine: lifecycle (Startup/Shutdown) plus session factory and counters
//   - Session: a unit of work that mutates vertices and edges until Commit
//   - VertexHandle / EdgeHandle: references to stored records
//
// Error classes:
//   - ErrWriteConflict: the commit collided with a concurrent writer, redo the unit of work
//   - ErrRecordMissing: a referenced vertex was removed by a concurrent writer
//
// Common usage pattern:
//
//	session, err := engine.OpenSession(ctx)
//	if err != nil {
//		// handle error
//	}
//	defer session.Close(ctx)
//
//	v, err := session.CreateVertex(ctx, "vertex_0")
//	err = session.SetProperty(ctx, v, graphstore.LookupPropertyKey, 42)
//	err = session.Commit(ctx)
package graphstore
