package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/polkiloo/offramp/internal/config"
)

// New creates a JSON slog.Logger writing to stdout at the configured level.
func New(cfg *config.Config) *slog.Logger {
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler).With(slog.String("service", "offramp"))
}

// ParseLevel maps a textual level to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
