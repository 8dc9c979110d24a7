package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	auth "github.com/safeedu/go-auth"
)

// SlogLogger adapts log/slog to auth.Logger, args are key value pairs
type SlogLogger struct {
	logger *slog.Logger
}

var _ auth.Logger = SlogLogger{}

// NewSlogLogger writes to w at the given level in text or json format
func NewSlogLogger(w io.Writer, level, format string) SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return SlogLogger{logger: slog.New(handler).With("component", "auth")}
}

func (l SlogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l SlogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l SlogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l SlogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l SlogLogger) log(level slog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), level, msg, args...)
}

func parseLevel(level string) slog.Level {
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
