// Package logging provides the structured logger used across every
// component of the hub.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/chathub/sessionhub/internal/contextkey"
)

// Logger wraps slog.Logger with context-aware enrichment (request id, user
// id) so call sites never have to thread those attributes by hand.
type Logger struct {
	slog *slog.Logger
}

// New creates a structured JSON logger at the given level ("debug", "info",
// "warn", "error"). An unparseable level defaults to info.
func New(logLevel string) *Logger {
	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		*level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})

	return &Logger{slog: slog.New(handler)}
}

// WithContext returns a child logger enriched with the request id and user
// id carried in ctx, when present.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	handler := l.slog.Handler()

	if reqID, ok := ctx.Value(contextkey.ContextKeyRequestID).(string); ok && reqID != "" {
		handler = handler.WithGroup("request").WithAttrs([]slog.Attr{
			slog.String("id", reqID),
		})
	}

	if userID, ok := ctx.Value(contextkey.ContextKeyUserID).(int64); ok && userID != 0 {
		handler = handler.WithGroup("auth").WithAttrs([]slog.Attr{
			slog.Int64("user_id", userID),
		})
	}

	return slog.New(handler)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Info(fmt.Sprintf(msg, args...))
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Warn(fmt.Sprintf(msg, args...))
}

func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Debug(fmt.Sprintf(msg, args...))
}

// Fatal logs at error level and exits the process. Reserved for
// unrecoverable boot-time failures, never for request-path code.
func (l *Logger) Fatal(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
	os.Exit(1)
}
