package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the graph store.
type DBAdapter interface {
	DBQuerier
	BeginTx(ctx context.Context) (DBTx, error)
	Close() error
}

// DBQuerier runs plain SQL strings either on the pool or inside a transaction.
type DBQuerier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBTx is a REPEATABLE READ transaction.
type DBTx interface {
	DBQuerier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
