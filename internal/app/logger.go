package app

import (
	"io"
	"log/slog"
)

// newLogger builds the application's slog.Logger from an already-validated
// Config. It never touches the global default logger, so embedding tests
// keep their own isolated instances.
func newLogger(cfg *Config, logW io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(logW, opts))
	}
	return slog.New(slog.NewTextHandler(logW, opts))
}
