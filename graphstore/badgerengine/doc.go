// Package badgerengine provides an embedded graphstore.Engine on top of BadgerDB.
//
// Vertices, edges, lookup index entries and adjacency entries are stored as
// separate keys in one keyspace. Each Session wraps a single optimistic
// read-write transaction, so two sessions that touch the same vertex are
// resolved by BadgerDB's conflict detection on commit and surface as
// graphstore.ErrWriteConflict.
//
// Shutdown closes the database and Startup reopens the same data directory,
// which is how a full restart is simulated between batches.
//
// Usage:
//
//	engine, err := badgerengine.NewEngine("/var/lib/graph", badgerengine.WithLogger(slog.Default()))
//	if err != nil {
//		// handle error
//	}
//	if err = engine.Startup(ctx); err != nil {
//		// handle error
//	}
//	defer engine.Shutdown(ctx)
package badgerengine
