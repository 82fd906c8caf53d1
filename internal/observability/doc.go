// Package observability groups structured logging, Prometheus metrics and
// OpenTelemetry tracing.
//
// Subpackages:
//   - logging: slog construction and context propagation
//   - metrics: Prometheus registry and recorders
//   - tracing: span helpers and HTTP middleware
package observability
