// Command graph-loadgen runs a phased, concurrent load against a graph store.
//
// Usage:
//
//	graph-loadgen run --engine badger --data-dir ./data
//	graph-loadgen run --engine postgres --dsn postgres://... --adapter pgx.pool --plan plan.yaml
//	graph-loadgen plan > plan.yaml
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
