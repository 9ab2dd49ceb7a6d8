package oteladapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// MetricsCollector implements graphstore.ContextualMetricsCollector using the OpenTelemetry metrics API.
//   - RecordDuration -> Float64Histogram in seconds
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Gauge
//
// Instruments are created on first use and cached. It is safe for concurrent use,
// since every worker of a batch records through the same collector.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.RWMutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

// NewMetricsCollector creates a collector that creates its instruments from meter.
// A nil meter records nothing.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}

	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// RecordDuration records a duration in seconds.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

// RecordDurationContext records a duration in seconds with context for trace correlation.
func (m *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {
	// Record duration in seconds (OpenTelemetry convention)
	if histogram := m.histogram(metricName); histogram != nil {
		histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(toAttributes(labels)...))
	}
}

// IncrementCounter increments a counter by one.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

// IncrementCounterContext increments a counter by one with context for trace correlation.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	if counter := m.counter(metricName); counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
	}
}

// RecordValue records the current value of a gauge.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordValueContext records the current value of a gauge with context for trace correlation.
func (m *MetricsCollector) RecordValueContext(
	ctx context.Context,
	metricName string,
	value float64,
	labels map[string]string,
) {
	if gauge := m.gauge(metricName); gauge != nil {
		gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
	}
}

func (m *MetricsCollector) histogram(name string) metric.Float64Histogram {
	return getOrCreate(&m.mu, m.histograms, name, func() (metric.Float64Histogram, error) {
		return m.meter.Float64Histogram(name, metric.WithDescription(describe(name, "duration")), metric.WithUnit("s"))
	})
}

func (m *MetricsCollector) counter(name string) metric.Int64Counter {
	return getOrCreate(&m.mu, m.counters, name, func() (metric.Int64Counter, error) {
		return m.meter.Int64Counter(name, metric.WithDescription(describe(name, "count")))
	})
}

func (m *MetricsCollector) gauge(name string) metric.Float64Gauge {
	return getOrCreate(&m.mu, m.gauges, name, func() (metric.Float64Gauge, error) {
		return m.meter.Float64Gauge(name, metric.WithDescription(describe(name, "current value")))
	})
}

// getOrCreate returns the cached instrument or creates it under the write lock.
// A failed creation is not cached, so it is retried on the next call.
func getOrCreate[T any](mu *sync.RWMutex, cache map[string]T, name string, create func() (T, error)) T {
	mu.RLock()
	instrument, ok := cache[name]
	mu.RUnlock()
	if ok {
		return instrument
	}

	mu.Lock()
	defer mu.Unlock()

	// Another goroutine may have created it between the two locks
	if instrument, ok = cache[name]; ok {
		return instrument
	}

	instrument, err := create()
	if err != nil {
		// Callers skip the recording on a zero instrument
		var zero T
		return zero
	}

	cache[name] = instrument

	return instrument
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

// describe derives a description from the instrument name, e.g. "loadgen batch duration".
func describe(name, kind string) string {
	subject := strings.NewReplacer("_seconds", "", "_total", "", "_", " ").Replace(name)
	if strings.HasSuffix(subject, kind) {
		return subject
	}

	return subject + " " + kind
}

var _ graphstore.ContextualMetricsCollector = (*MetricsCollector)(nil)
