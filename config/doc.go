// Package config provides the runtime configuration of the graph load generator.
//
// It contains factory functions for PostgreSQL connections in all three adapter
// flavours (pgx.Pool, sql.DB, sqlx.DB), the OpenTelemetry provider setup for
// traces and metrics, and loading of run plans from YAML files.
package config
