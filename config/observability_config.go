package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/oteladapters"
)

// Exporter names for traces and metrics.
const (
	ExporterNone       = "none"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

const (
	defaultServiceName     = "graph-loadgen"
	defaultOTLPEndpoint    = "localhost:4317"
	defaultPrometheusAddr  = ":9464"
	defaultMetricInterval  = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// ErrUnknownExporter is returned for an exporter name that is not supported.
var ErrUnknownExporter = errors.New("unknown exporter")

// ObservabilityConfig selects where traces and metrics go.
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string

	// TraceExporter is one of "otlp", "stdout" or "none".
	TraceExporter string
	// MetricExporter is one of "prometheus", "otlp", "stdout" or "none".
	MetricExporter string

	OTLPEndpoint string
	OTLPInsecure bool

	// PrometheusAddr is the listen address of the /metrics endpoint.
	PrometheusAddr string
	MetricInterval time.Duration
}

// DefaultObservabilityConfig returns a config with both exporters disabled.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName:    defaultServiceName,
		ServiceVersion: "dev",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterNone,
		OTLPEndpoint:   defaultOTLPEndpoint,
		OTLPInsecure:   true,
		PrometheusAddr: defaultPrometheusAddr,
		MetricInterval: defaultMetricInterval,
	}
}

// ObservabilityProviders holds the OpenTelemetry providers of a run.
// A provider is nil when its exporter is "none".
type ObservabilityProviders struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Resource       *resource.Resource

	metricsServer *http.Server
	metricsAddr   net.Addr
}

// NewObservabilityProviders creates the providers selected by cfg and installs them globally.
// The Prometheus exporter serves /metrics on cfg.PrometheusAddr until Shutdown.
func NewObservabilityProviders(ctx context.Context, cfg ObservabilityConfig) (*ObservabilityProviders, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &ObservabilityProviders{Resource: res}

	if cfg.TraceExporter != ExporterNone {
		if p.TracerProvider, err = newTracerProvider(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(p.TracerProvider)
	}

	if cfg.MetricExporter != ExporterNone {
		if err = p.initMeterProvider(ctx, cfg, res); err != nil {
			return nil, errors.Join(fmt.Errorf("init meter: %w", err), p.Shutdown(ctx))
		}
		otel.SetMeterProvider(p.MeterProvider)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	return p, nil
}

func newTracerProvider(ctx context.Context, cfg ObservabilityConfig, res *resource.Resource) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())

	default:
		return nil, fmt.Errorf("%w: traces %q", ErrUnknownExporter, cfg.TraceExporter)
	}

	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	), nil
}

func (p *ObservabilityProviders) initMeterProvider(ctx context.Context, cfg ObservabilityConfig, res *resource.Resource) error {
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}

	var reader metric.Reader

	switch cfg.MetricExporter {
	case ExporterPrometheus:
		registry := prometheus.NewRegistry()

		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}

		if err = p.serveMetrics(cfg.PrometheusAddr, registry); err != nil {
			return err
		}

		reader = exporter

	case ExporterOTLP:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}

		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}

		reader = metric.NewPeriodicReader(exporter, metric.WithInterval(interval))

	case ExporterStdout:
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}

		reader = metric.NewPeriodicReader(exporter, metric.WithInterval(interval))

	default:
		return fmt.Errorf("%w: metrics %q", ErrUnknownExporter, cfg.MetricExporter)
	}

	p.MeterProvider = metric.NewMeterProvider(
		metric.WithReader(reader),
		metric.WithResource(res),
	)

	return nil
}

func (p *ObservabilityProviders) serveMetrics(addr string, gatherer prometheus.Gatherer) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	p.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.metricsAddr = listener.Addr()

	go func() { _ = p.metricsServer.Serve(listener) }()

	return nil
}

// MetricsAddr returns the address the /metrics endpoint listens on, or nil without Prometheus.
func (p *ObservabilityProviders) MetricsAddr() net.Addr {
	return p.metricsAddr
}

// Collectors returns the graphstore adapters for the configured providers, all named name.
// Collectors of disabled providers are nil.
func (p *ObservabilityProviders) Collectors(name string) (graphstore.MetricsCollector, graphstore.TracingCollector) {
	var metrics graphstore.MetricsCollector
	if p.MeterProvider != nil {
		metrics = oteladapters.NewMetricsCollector(p.MeterProvider.Meter(name))
	}

	var tracing graphstore.TracingCollector
	if p.TracerProvider != nil {
		tracing = oteladapters.NewTracingCollector(p.TracerProvider.Tracer(name))
	}

	return metrics, tracing
}

// Shutdown flushes and stops all providers and the metrics endpoint.
func (p *ObservabilityProviders) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	var errs []error

	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}

	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}

	if p.metricsServer != nil {
		errs = append(errs, p.metricsServer.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
