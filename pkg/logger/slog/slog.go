// Package slog writes docsync logs through a log/slog handler. It backs the
// text log format; the default JSON format uses zerolog.
package slog

import (
	"io"
	"log/slog"
	"strings"
)

// Logger adapts a *slog.Logger to logger.Logger.
type Logger struct {
	logger *slog.Logger
}

func New(h slog.Handler) *Logger {
	return &Logger{logger: slog.New(h)}
}

// NewText returns a Logger writing key=value records to w at or above the
// named level. Every record carries app=docsync.
func NewText(w io.Writer, level string) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return New(h).With("app", "docsync")
}

// ParseLevel maps the level names accepted by DOCSYNC_LOG_LEVEL to slog
// levels. Unknown names are info, as with the JSON format.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal", "panic":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}
