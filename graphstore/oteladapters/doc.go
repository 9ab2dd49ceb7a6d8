// Package oteladapters provides OpenTelemetry adapters for the graphstore observability interfaces.
//
// The adapters are shared by the storage engines and the load generator:
//   - MetricsCollector maps durations to histograms, counters to Int64Counters and values to gauges
//   - TracingCollector wraps an OpenTelemetry tracer
//   - SlogBridgeLogger and OTelLogger implement graphstore.ContextualLogger with trace correlation
package oteladapters
