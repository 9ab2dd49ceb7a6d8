package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

const (
	defaultMaxOpenConnections = 50
	defaultMaxIdleConnections = 2
	defaultSQLConnLifetime    = time.Hour
	defaultSQLConnIdleTime    = time.Minute * 5
)

// SQLDBOpener returns a function that opens a configured *sql.DB for dsn.
// Opening does not connect, the engine verifies the connection on startup.
func SQLDBOpener(dsn string) func() (*sql.DB, error) {
	return func() (*sql.DB, error) {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}

		configurePool(db)

		return db, nil
	}
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultSQLConnLifetime)
	db.SetConnMaxIdleTime(defaultSQLConnIdleTime)
}
