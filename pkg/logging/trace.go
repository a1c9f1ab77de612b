package logging

import "log/slog"

// EnableTrace turns on per-step logs such as fade ticks. Set from log.trace.
var EnableTrace bool

// Trace logs msg at DEBUG when EnableTrace is set.
func Trace(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
