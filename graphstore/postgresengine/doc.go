// Package postgresengine provides a PostgreSQL implementation of the graphstore interfaces.
//
// Vertices live in one table with a jsonb properties column, edges in a second table
// whose foreign keys cascade on vertex deletion. Every Session wraps one REPEATABLE READ
// transaction, so concurrent deletes of the same vertex fail with a serialization error
// that is reported as graphstore.ErrWriteConflict.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Restart support: Shutdown closes the connection pool and Startup opens a new one
//   - Point lookups through jsonb containment on a GIN index
//   - Optional schema bootstrap and purge for fresh runs
//
// Usage examples:
//
//	// pgx.Pool
//	engine, _ := postgresengine.NewEngineFromPGXPoolConfig(poolConfig, postgresengine.WithSchemaBootstrap())
//
//	// database/sql with lib/pq
//	engine, _ := postgresengine.NewEngineFromSQLDB(func() (*sql.DB, error) {
//		return sql.Open("postgres", dsn)
//	})
//
//	err := engine.Startup(ctx)
//	session, _ := engine.OpenSession(ctx)
package postgresengine
