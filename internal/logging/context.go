package logging

import (
	"context"
	"io"
	"log/slog"
)

type loggerContextKey struct{}

// WithLogger stores a request-scoped logger in ctx. The request logger
// middleware attaches a logger enriched with the request id; the order and
// coupon services retrieve it through FromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = discard()
	}
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext returns the request-scoped logger, the fallback when none is
// stored, or a discarding logger when both are absent.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return discard()
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
