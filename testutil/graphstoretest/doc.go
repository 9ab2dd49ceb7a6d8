// Package graphstoretest wraps a graphstore.Engine to inject faults and count lifecycle calls.
// It is meant for deterministic retry, abort and restart tests against a real engine.
package graphstoretest
