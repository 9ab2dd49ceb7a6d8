package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/config"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/oteladapters"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
)

const instrumentationName = "graph-loadgen"

type runOptions struct {
	engine     string
	dataDir    string
	syncWrites bool
	badgerLogs bool
	valueLogGC float64
	dsn        string
	adapter    string
	fresh      bool

	planPath         string
	seed             uint64
	rate             float64
	burst            int
	maxAttempts      int
	retryDelay       time.Duration
	progressInterval int64

	traces         string
	metrics        string
	otlpEndpoint   string
	prometheusAddr string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the load plan against a graph store",
		Long: `Run the load plan against a graph store.

Every batch fans out one worker per label shard, waits for all of them, merges
their results into the registry of live record ids and restarts the store.
The run stops at the first fatal error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, global, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.engine, "engine", engineBadger, "Store engine: badger or postgres")
	flags.StringVar(&opts.dataDir, "data-dir", "graph-loadgen-data", "Data directory of the badger engine")
	flags.BoolVar(&opts.syncWrites, "sync-writes", false, "Fsync every badger commit")
	flags.BoolVar(&opts.badgerLogs, "badger-logs", false, "Forward badger's internal logs")
	flags.Float64Var(&opts.valueLogGC, "value-log-gc", 0,
		"Run badger value log GC on every restart with this discard ratio (0 disables, otherwise between 0 and 1)")
	flags.StringVar(&opts.dsn, "dsn", config.PostgresDSN(), "PostgreSQL DSN (env "+config.PostgresDSNEnv+")")
	flags.StringVar(&opts.adapter, "adapter", config.AdapterPGXPool, "PostgreSQL adapter: pgx.pool, sql.db or sqlx.db")
	flags.BoolVar(&opts.fresh, "fresh", true, "Drop all stored data before the run. Ids restart at 0, so a run on a non-empty store fails on the first reused id")
	flags.StringVar(&opts.planPath, "plan", "", "Path to a YAML plan file (default: built-in plan)")
	flags.Uint64Var(&opts.seed, "seed", 0, "Seed for the random picks (0: random)")
	flags.Float64Var(&opts.rate, "rate", 0, "Limit all workers together to this many operations per second (0: unlimited)")
	flags.IntVar(&opts.burst, "burst", 1, "Burst size of the --rate limiter")
	flags.IntVar(&opts.maxAttempts, "max-attempts", 0, "Attempts per retryable unit of work (0: unbounded)")
	flags.DurationVar(&opts.retryDelay, "retry-delay", 0, "Initial delay of an exponential backoff between attempts (0: retry immediately)")
	flags.Int64Var(&opts.progressInterval, "progress-interval", 10000, "Report worker progress after this many operations")
	flags.StringVar(&opts.traces, "traces", config.ExporterNone, "Trace exporter: otlp, stdout or none")
	flags.StringVar(&opts.metrics, "metrics", config.ExporterNone, "Metric exporter: prometheus, otlp, stdout or none")
	flags.StringVar(&opts.otlpEndpoint, "otlp-endpoint", config.DefaultObservabilityConfig().OTLPEndpoint, "OTLP gRPC endpoint")
	flags.StringVar(&opts.prometheusAddr, "prometheus-addr", config.DefaultObservabilityConfig().PrometheusAddr, "Listen address of the /metrics endpoint")

	return cmd
}

func runLoad(cmd *cobra.Command, global *globalOptions, opts *runOptions) (err error) {
	ctx := cmd.Context()

	handler, err := global.handler(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	plan, err := config.LoadPlan(opts.planPath)
	if err != nil {
		return err
	}

	providers, err := config.NewObservabilityProviders(ctx, observabilityConfig(opts))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx))) }()

	metrics, tracing := providers.Collectors(instrumentationName)
	bridge := oteladapters.NewSlogBridgeLoggerWithHandler(handler)
	inst := instruments{
		logger:     bridge.Logger(),
		contextual: bridge,
		metrics:    metrics,
		tracing:    tracing,
	}

	engine, err := newEngine(opts, inst)
	if err != nil {
		return err
	}

	if opts.fresh {
		if err = purge(ctx, engine); err != nil {
			return err
		}
	}

	driver, err := loadgen.NewPhaseDriver(engine, plan, loadOptions(opts, inst)...)
	if err != nil {
		return err
	}

	summary, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"run %s finished in %s: %d batches, %d vertices added, %d deleted, %d edges added, %d retries, store holds %d vertices and %d edges\n",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.Batches,
		summary.VerticesAdded, summary.VerticesDeleted, summary.EdgesAdded, summary.Retries,
		summary.StoreVertices, summary.StoreEdges,
	)

	return err
}

func observabilityConfig(opts *runOptions) config.ObservabilityConfig {
	cfg := config.DefaultObservabilityConfig()
	cfg.TraceExporter = opts.traces
	cfg.MetricExporter = opts.metrics
	cfg.OTLPEndpoint = opts.otlpEndpoint
	cfg.PrometheusAddr = opts.prometheusAddr

	return cfg
}

func loadOptions(opts *runOptions, inst instruments) []loadgen.Option {
	options := []loadgen.Option{
		loadgen.WithContextualLogger(inst.contextual),
		loadgen.WithObserver(loadgen.NewLoggingObserver(inst.logger)),
		loadgen.WithRetryLimit(opts.maxAttempts),
		loadgen.WithProgressInterval(opts.progressInterval),
	}

	if inst.metrics != nil {
		options = append(options, loadgen.WithMetrics(inst.metrics))
	}

	if inst.tracing != nil {
		options = append(options, loadgen.WithTracing(inst.tracing))
	}

	if opts.seed != 0 {
		options = append(options, loadgen.WithSeed(opts.seed))
	}

	if opts.rate != 0 {
		options = append(options, loadgen.WithRate(opts.rate, opts.burst))
	}

	if opts.retryDelay > 0 {
		delay := opts.retryDelay
		options = append(options, loadgen.WithRetryBackOff(func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = delay
			policy.MaxElapsedTime = 0

			return policy
		}))
	}

	return options
}
