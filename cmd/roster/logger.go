package main

import (
	"io"
	"log/slog"

	"github.com/brattlof/roster/internal/app/config"
)

// setupLogger builds the process logger. Its level follows level, so a
// config reload can change it in place.
func setupLogger(cfg *config.Config, level *slog.LevelVar, out io.Writer) *slog.Logger {
	level.Set(cfg.LogLevel())
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
