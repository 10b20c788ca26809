package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/tjfontaine/idcard-assistant/internal/config"
)

// newLogger builds the process logger. Unknown levels fall back to info and
// unknown formats to JSON.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
