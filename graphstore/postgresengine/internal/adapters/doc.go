// Package adapters provide database adapter implementations for the PostgreSQL graph store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including REPEATABLE READ transactions, so the engine
// works with any supported connection type.
package adapters
