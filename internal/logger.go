package internal

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Text output in development, JSON
// otherwise. Every record carries the process role and pid so that the
// interleaved output of the primary and its workers can be told apart.
func NewLogger(w io.Writer, env string, level string, role string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("role", role, "pid", os.Getpid())
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
