package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup creates the process logger, sets it as the slog default, and returns
// it. Every record carries the service name so hub and companion logs can be
// told apart when aggregated. The level accepts "debug", "info", "warn", or
// "error" (case-insensitive); anything else means info.
func Setup(service, level string) *slog.Logger {
	return newLogger(os.Stderr, service, level)
}

func newLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
