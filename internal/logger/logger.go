// Package logger provides structured logging setup for the application.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup creates a structured JSON logger at the configured level and
// sets it as the process default. An unknown level falls back to info
// with a warning.
func Setup(logLevel string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", logLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
