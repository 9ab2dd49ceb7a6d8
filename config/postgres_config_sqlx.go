package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLXOpener returns a function that opens a configured *sqlx.DB for dsn.
func SQLXOpener(dsn string) func() (*sqlx.DB, error) {
	return func() (*sqlx.DB, error) {
		db, err := sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}

		configurePool(db.DB)

		return db, nil
	}
}
