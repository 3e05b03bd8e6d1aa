package match

import "log/slog"

// Tracer receives human-readable scoring breadcrumbs. The scoring
// functions stay pure; everything observable goes through this hook.
type Tracer interface {
	Trace(msg string, args ...any)
}

// NopTracer discards all trace output.
type NopTracer struct{}

// Trace does nothing.
func (NopTracer) Trace(string, ...any) {}

// SlogTracer forwards scoring traces to a slog.Logger at debug level.
type SlogTracer struct {
	Logger *slog.Logger
}

// Trace logs the breadcrumb at debug level.
func (t SlogTracer) Trace(msg string, args ...any) {
	t.Logger.Debug(msg, args...)
}
