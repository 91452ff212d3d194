// Package logging holds the slog setup shared by the stoplookup binaries and
// a few helpers for logging errors and outgoing HTTP requests consistently.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type contextKey struct{}

// New builds a logger writing to w. format is "json" or "text"; anything
// else falls back to text. verbose lowers the level to debug.
func New(format string, verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// LogError logs err at error level with msg and any extra attributes.
// A nil logger falls back to slog.Default().
func LogError(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.Any("error", err))
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Error(msg, args...)
}

// LogHTTPRequest logs one completed outgoing request to the backend.
// Failed requests (status 0 or >= 400) are logged at warn level.
func LogHTTPRequest(logger *slog.Logger, method, endpoint string, status int, durationMs float64, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	}
	for _, a := range attrs {
		args = append(args, a)
	}

	if status == 0 || status >= 400 {
		logger.Warn("backend request failed", args...)
		return
	}
	logger.Debug("backend request", args...)
}

// SafeCloseWithLogging closes c and logs (rather than returns) any error.
func SafeCloseWithLogging(c io.Closer, logger *slog.Logger, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		LogError(logger, "failed to close "+resource, err, slog.String("resource", resource))
	}
}
