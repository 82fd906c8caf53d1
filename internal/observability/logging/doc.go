// Package logging builds the JSON slog logger from LOG_LEVEL and LOG_FORMAT
// and carries request-scoped loggers through a context.
package logging
