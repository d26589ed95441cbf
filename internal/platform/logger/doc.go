// Package logger builds the service's JSON slog logger from the server
// config and carries request-scoped loggers, tagged with the trace id,
// through context.Context.
package logger
