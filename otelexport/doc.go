// Package otelexport bridges OpenTelemetry tracing into a transaction
// trace file: it implements the OTel SDK's SpanExporter and records
// every finished span as a closed transaction.
//
// Mapping:
//   - one stream per instrumentation scope, opened on first use
//   - span parent/child relationships become transaction parents
//     (children render on sub-tracks under the parent)
//   - span attributes become typed transaction attributes
//   - span links become flow links, when the linked span was exported
//     in the same batch
//
// Derived attributes evaluate an expr-lang expression against each
// span ("attrs", "name", and "scope" are in scope) and attach the
// result as an extra attribute; expressions are compiled once at
// exporter construction.
//
// The exporter owns the trace it writes to: Shutdown closes it.
package otelexport
