// Package observability carries the request-scoped sentry meter behind
// counters like order.created, coupon.redeemed and http.server.requests.
package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
)

type meterKey struct{}

// WithMeter attaches meter to ctx, creating one when nil so downstream
// Count calls never need a nil check.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request-scoped meter, rebound to ctx so
// counts attach to the span currently in flight. Absent a stored meter it
// hands back a fresh one.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, ok := ctx.Value(meterKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}
