package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a JSON logger for the named process. slog keeps the
// standard library feel while emitting structured logs any backend can
// ingest; the service attribute distinguishes the API from the
// consumer when both ship to the same sink.
func NewLogger(service, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", service)
}

func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
