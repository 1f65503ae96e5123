// Package slogger provides the structured logging facade used across the
// application. Output is JSON on stdout via log/slog.
package slogger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Fields is a map of structured log fields.
type Fields = map[string]interface{}

var (
	defaultLogger *slog.Logger //nolint:gochecknoglobals // process-wide logging infrastructure
	defaultOnce   sync.Once    //nolint:gochecknoglobals // thread-safe lazy initialization
)

// Configure replaces the process logger. Level is one of debug, info, warn,
// error; format is json or text.
func Configure(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	defaultLogger = slog.New(handler)
}

// SetLogger replaces the process logger directly (useful for testing).
func SetLogger(logger *slog.Logger) {
	defaultLogger = logger
}

func getLogger() *slog.Logger {
	defaultOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
		}
	})
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

func attrs(fields Fields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// Debug logs a debug message with context.
func Debug(ctx context.Context, msg string, fields Fields) {
	getLogger().DebugContext(ctx, msg, attrs(fields)...)
}

// Info logs an info message with context.
func Info(ctx context.Context, msg string, fields Fields) {
	getLogger().InfoContext(ctx, msg, attrs(fields)...)
}

// Warn logs a warning message with context.
func Warn(ctx context.Context, msg string, fields Fields) {
	getLogger().WarnContext(ctx, msg, attrs(fields)...)
}

// Error logs an error message with context.
func Error(ctx context.Context, msg string, fields Fields) {
	getLogger().ErrorContext(ctx, msg, attrs(fields)...)
}

// ErrorWithError logs an error message with an error object and context.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["error"] = err.Error()
	Error(ctx, msg, fields)
}

// No-context fallback functions.

// InfoNoCtx logs an info message without context.
func InfoNoCtx(msg string, fields Fields) {
	Info(context.Background(), msg, fields)
}

// WarnNoCtx logs a warning message without context.
func WarnNoCtx(msg string, fields Fields) {
	Warn(context.Background(), msg, fields)
}

// ErrorNoCtx logs an error message without context.
func ErrorNoCtx(msg string, fields Fields) {
	Error(context.Background(), msg, fields)
}

// Helper functions for creating Fields.

// Field creates a single-field Fields map.
func Field(key string, value interface{}) Fields {
	return Fields{key: value}
}

// Fields2 creates a Fields map with two key-value pairs.
func Fields2(k1 string, v1 interface{}, k2 string, v2 interface{}) Fields {
	return Fields{k1: v1, k2: v2}
}

// Fields3 creates a Fields map with three key-value pairs.
func Fields3(k1 string, v1 interface{}, k2 string, v2 interface{}, k3 string, v3 interface{}) Fields {
	return Fields{k1: v1, k2: v2, k3: v3}
}
