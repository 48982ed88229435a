// Package util provides shared helpers for structured logging and bounded
// retries.
package util

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a JSON slog.Logger writing to w at the named level.
// Levels are "debug", "info", "warn" and "error"; anything unrecognised
// means "info".
func NewLogger(w io.Writer, level string) *slog.Logger {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slevel,
	}))
}

// SetDefault installs logger as the process-wide slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
