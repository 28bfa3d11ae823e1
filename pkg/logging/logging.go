// Package logging configures structured logging for guestpass.
//
// Usage:
//
//	logging.Setup("info", "text")           // colored tint output on stderr
//	logging.Setup("debug", "json")          // JSON lines, for log shippers
//
// Levels: debug, info, warn, error (default: info).
// Formats: text (tint, default) or json.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog logger writing to stderr.
func Setup(level, format string) *slog.Logger {
	return SetupWriter(os.Stderr, level, format)
}

// SetupWriter installs the default slog logger writing to w.
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	logger := New(w, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without installing it as the default.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: lvl,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

type requestIDKey struct{}

// WithRequestID returns a context carrying a request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns logger annotated with the request id in ctx, if any.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestID(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}
