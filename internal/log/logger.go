// Package log wraps log/slog with a per-component text logger used by the
// server and worker binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a text slog.Logger tagged with the component name. The level
// comes from LOG_LEVEL (debug, info, warn, error), defaulting to info.
func New(component string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(handler).With("component", component)
}

// SetDefault installs the component logger as the process default so that
// package-level slog calls carry the component tag.
func SetDefault(component string) *slog.Logger {
	logger := New(component)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
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
