// Package helper provides test doubles for the graphstore observability interfaces.
//
// The spies capture log records, metric calls and spans so tests can assert on the
// instrumentation of the storage engines and the load generator.
package helper
