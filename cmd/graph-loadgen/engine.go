package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/config"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/badgerengine"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/postgresengine"
)

const (
	engineBadger   = "badger"
	enginePostgres = "postgres"
)

var errUnknownEngine = errors.New("unknown engine")

// instruments carries the observability adapters shared by the engine and the load generator.
type instruments struct {
	logger     *slog.Logger
	contextual graphstore.ContextualLogger
	metrics    graphstore.MetricsCollector
	tracing    graphstore.TracingCollector
}

// newEngine creates the selected engine in shut down state.
func newEngine(opts *runOptions, inst instruments) (graphstore.Engine, error) {
	switch opts.engine {
	case engineBadger:
		options := []badgerengine.Option{
			badgerengine.WithContextualLogger(inst.contextual),
			badgerengine.WithSyncWrites(opts.syncWrites),
		}
		if opts.valueLogGC != 0 {
			options = append(options, badgerengine.WithValueLogGC(opts.valueLogGC))
		}
		if opts.badgerLogs {
			options = append(options, badgerengine.WithBadgerLogger(inst.logger))
		}
		if inst.metrics != nil {
			options = append(options, badgerengine.WithMetrics(inst.metrics))
		}
		if inst.tracing != nil {
			options = append(options, badgerengine.WithTracing(inst.tracing))
		}

		return badgerengine.NewEngine(opts.dataDir, options...)

	case enginePostgres:
		options := []postgresengine.Option{
			postgresengine.WithSchemaBootstrap(),
			postgresengine.WithContextualLogger(inst.contextual),
		}
		if inst.metrics != nil {
			options = append(options, postgresengine.WithMetrics(inst.metrics))
		}
		if inst.tracing != nil {
			options = append(options, postgresengine.WithTracing(inst.tracing))
		}

		return newPostgresEngine(opts.dsn, opts.adapter, options...)

	default:
		return nil, fmt.Errorf("%w %q, want %s or %s", errUnknownEngine, opts.engine, engineBadger, enginePostgres)
	}
}

func newPostgresEngine(dsn, adapter string, options ...postgresengine.Option) (*postgresengine.Engine, error) {
	switch adapter {
	case config.AdapterPGXPool:
		poolConfig, err := config.PostgresPGXPoolConfig(dsn)
		if err != nil {
			return nil, err
		}

		return postgresengine.NewEngineFromPGXPoolConfig(poolConfig, options...)

	case config.AdapterSQLDB:
		return postgresengine.NewEngineFromSQLDB(config.SQLDBOpener(dsn), options...)

	case config.AdapterSQLX:
		return postgresengine.NewEngineFromSQLX(config.SQLXOpener(dsn), options...)

	default:
		return nil, fmt.Errorf("unknown postgres adapter %q, want %s, %s or %s",
			adapter, config.AdapterPGXPool, config.AdapterSQLDB, config.AdapterSQLX)
	}
}

// purge removes all data of a previous run: the engine is started, purged and shut down again.
func purge(ctx context.Context, engine graphstore.Engine) error {
	purger, ok := engine.(graphstore.Purger)
	if !ok {
		return nil
	}

	if err := engine.Startup(ctx); err != nil {
		return fmt.Errorf("start store for purge: %w", err)
	}

	return errors.Join(purger.Purge(ctx), engine.Shutdown(ctx))
}
