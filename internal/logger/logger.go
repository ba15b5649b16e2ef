// Package logger builds the slog text logger the newspipe jobs share. The
// level comes from LOG_LEVEL; every record carries the service name.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New constructs a text logger scoped to one job's service name.
func New(service string) *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
