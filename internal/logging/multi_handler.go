package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// MultiHandler tees slog records to every non-nil handler. The app uses it
// to drive console output and the optional LOG_FILE sink from one logger.
func MultiHandler(handlers ...slog.Handler) slog.Handler {
	targets := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			targets = append(targets, h)
		}
	}

	switch len(targets) {
	case 0:
		return slog.NewTextHandler(io.Discard, nil)
	case 1:
		return targets[0]
	}
	return &teeHandler{targets: targets}
}

type teeHandler struct {
	targets []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t.targets {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		next[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{targets: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		next[i] = h.WithGroup(name)
	}
	return &teeHandler{targets: next}
}
