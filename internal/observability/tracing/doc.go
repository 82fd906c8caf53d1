// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created from the global tracer provider; with no provider installed
// they are no-ops. Feed renders and full-text fetches open internal spans, and
// Middleware opens one server span per HTTP request.
package tracing
