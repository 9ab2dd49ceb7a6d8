package oteladapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore/oteladapters"
)

func newManualMeter() (*sdkmetric.ManualReader, metric.Meter) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, provider.Meter("test")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "Failed to collect metrics")

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration_AsSeconds(t *testing.T) {
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordDuration("graphstore_commit_duration_seconds", 150*time.Millisecond, map[string]string{
		"engine": "badger",
		"status": "success",
	})

	histogram := findHistogramMetric(t, collect(t, reader), "graphstore_commit_duration_seconds")
	require.Len(t, histogram.DataPoints, 1, "Expected exactly one data point")

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "Histogram sum should be 0.15 seconds")

	expectedAttrs := attribute.NewSet(
		attribute.String("engine", "badger"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "Attributes should match")
}

func Test_MetricsCollector_IncrementCounter_Accumulates(t *testing.T) {
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	labels := map[string]string{"phase": "add-edges", "reason": "write_conflict"}

	for range 3 {
		collector.IncrementCounter("loadgen_retries_total", labels)
	}

	counter := findCounterMetric(t, collect(t, reader), "loadgen_retries_total")
	require.Len(t, counter.DataPoints, 1, "Expected exactly one data point")
	assert.Equal(t, int64(3), counter.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue_LastValueWins(t *testing.T) {
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordValue("loadgen_registry_size", 1300, nil)
	collector.RecordValue("loadgen_registry_size", 2600, nil)

	gauge := findGaugeMetric(t, collect(t, reader), "loadgen_registry_size")
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 2600.0, gauge.DataPoints[0].Value)
}

func Test_MetricsCollector_ContextualMethods(t *testing.T) {
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	ctx := context.Background()
	labels := map[string]string{"test": "contextual"}

	collector.RecordDurationContext(ctx, "test_duration", 100*time.Millisecond, labels)
	collector.IncrementCounterContext(ctx, "test_counter", labels)
	collector.RecordValueContext(ctx, "test_gauge", 123.45, labels)

	metricNames := make(map[string]bool)
	for _, scopeMetrics := range collect(t, reader).ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			metricNames[m.Name] = true
		}
	}

	assert.True(t, metricNames["test_duration"], "Duration metric should be recorded")
	assert.True(t, metricNames["test_counter"], "Counter metric should be recorded")
	assert.True(t, metricNames["test_gauge"], "Gauge metric should be recorded")
}

func Test_MetricsCollector_NilLabels(t *testing.T) {
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordDuration("test_metric", 50*time.Millisecond, nil)

	histogram := findHistogramMetric(t, collect(t, reader), "test_metric")
	assert.Len(t, histogram.DataPoints, 1, "Metric should be recorded even with nil labels")
}

func Test_MetricsCollector_NilMeter_RecordsNothing(t *testing.T) {
	collector := oteladapters.NewMetricsCollector(nil)
	require.NotNil(t, collector)

	assert.NotPanics(t, func() {
		collector.RecordDuration("test", 100*time.Millisecond, nil)
		collector.IncrementCounter("test", nil)
		collector.RecordValue("test", 42.0, nil)
	})
}

func Test_MetricsCollector_WorksThroughGraphstoreHelpers(t *testing.T) {
	reader, meter := newManualMeter()
	var collector graphstore.MetricsCollector = oteladapters.NewMetricsCollector(meter)
	ctx := context.Background()

	graphstore.IncrementCounter(ctx, collector, "loadgen_batches_total", map[string]string{"status": "success"})
	graphstore.RecordValue(ctx, collector, "loadgen_registry_size", 13, nil)
	graphstore.RecordDuration(ctx, collector, "loadgen_batch_duration_seconds", time.Second, nil)

	resourceMetrics := collect(t, reader)
	assert.Equal(t, int64(1), findCounterMetric(t, resourceMetrics, "loadgen_batches_total").DataPoints[0].Value)
	assert.Equal(t, 13.0, findGaugeMetric(t, resourceMetrics, "loadgen_registry_size").DataPoints[0].Value)
	assert.Equal(t, uint64(1), findHistogramMetric(t, resourceMetrics, "loadgen_batch_duration_seconds").DataPoints[0].Count)
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	labels := map[string]string{"task": "vertex-adder"}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				collector.IncrementCounter("loadgen_worker_operations_total", labels)
			}
		}()
	}
	wg.Wait()

	counter := findCounterMetric(t, collect(t, reader), "loadgen_worker_operations_total")
	assert.Equal(t, int64(800), counter.DataPoints[0].Value)
}

func Test_MetricsCollector_InstrumentCreationErrors(t *testing.T) {
	_, baseMeter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(&errorInjectingMeter{Meter: baseMeter})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		collector.RecordDuration("error_histogram", 100*time.Millisecond, nil)
		collector.IncrementCounter("error_counter", nil)
		collector.RecordValue("error_gauge", 42.0, nil)
		collector.RecordDurationContext(ctx, "error_histogram", 100*time.Millisecond, nil)
		collector.IncrementCounterContext(ctx, "error_counter", nil)
		collector.RecordValueContext(ctx, "error_gauge", 42.0, nil)
	}, "Recording should not panic when instrument creation fails")
}

// errorInjectingMeter wraps a real meter but fails to create instruments with an "error_" prefix.
type errorInjectingMeter struct {
	metric.Meter
}

func (m *errorInjectingMeter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == "error_histogram" {
		return nil, errors.New("histogram creation failed")
	}
	return m.Meter.Float64Histogram(name, options...)
}

func (m *errorInjectingMeter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == "error_counter" {
		return nil, errors.New("counter creation failed")
	}
	return m.Meter.Int64Counter(name, options...)
}

func (m *errorInjectingMeter) Float64Gauge(name string, options ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	if name == "error_gauge" {
		return nil, errors.New("gauge creation failed")
	}
	return m.Meter.Float64Gauge(name, options...)
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Histogram[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				return &h
			}
		}
	}
	t.Fatalf("Histogram metric %s not found", name)
	return nil
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Sum[int64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if c, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				return &c
			}
		}
	}
	t.Fatalf("Counter metric %s not found", name)
	return nil
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Gauge[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if g, ok := m.Data.(metricdata.Gauge[float64]); ok && m.Name == name {
				return &g
			}
		}
	}
	t.Fatalf("Gauge metric %s not found", name)
	return nil
}
