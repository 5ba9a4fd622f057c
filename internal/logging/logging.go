package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process-wide logger writing structured text to stderr, so
// log rows never mix with anything the harvester emits on stdout. Components
// derive their own logger from it with With("component", ...).
func New(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// parseLevel maps the configured level string to a slog level. Unrecognized
// values fall back to info, matching the configuration default.
func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
