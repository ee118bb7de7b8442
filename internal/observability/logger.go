package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
)

// Logger writes structured log lines. Production output is JSON; development
// output is human-readable text.
type Logger struct {
	base *slog.Logger
}

func NewLogger(environment string) *Logger {
	return NewLoggerWithWriter(os.Stdout, environment)
}

func NewLoggerWithWriter(w io.Writer, environment string) *Logger {
	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return &Logger{base: slog.New(handler)}
}

// NopLogger discards everything. Used by tests and tools.
func NopLogger() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(slog.LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(slog.LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(slog.LevelError, message, fields)
}

// Slog exposes the underlying logger for libraries that accept *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.base
}

func (l *Logger) write(level slog.Level, message string, fields map[string]any) {
	if l == nil {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	l.base.LogAttrs(context.Background(), level, message, attrs...)
}
