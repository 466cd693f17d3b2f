package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

// tracedTables are the relations this service owns. Queries touching one
// get a db.sql.table attribute on their span; the first match wins.
var tracedTables = []string{"coupon_redemptions", "coupons", "orders"}

type querySpanContextKey struct{}

type queryTracer struct{}

func newQueryTracer() *queryTracer {
	return &queryTracer{}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	query := compactQuery(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(query),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")

	if operation := queryOperation(query); operation != "" {
		span.SetData("db.operation", operation)
	}
	if table := queryTable(query); table != "" {
		span.SetData("db.sql.table", table)
	}

	return context.WithValue(span.Context(), querySpanContextKey{}, span)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, _ := ctx.Value(querySpanContextKey{}).(*sentry.Span)
	if span == nil {
		return
	}

	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
	} else {
		span.Status = sentry.SpanStatusOK
		if rows := data.CommandTag.RowsAffected(); rows >= 0 {
			span.SetData("db.rows_affected", rows)
		}
	}

	span.Finish()
}

// compactQuery collapses the multi-line SQL literals in this package into
// a single bounded line fit for a span description.
func compactQuery(query string) string {
	compact := strings.Join(strings.Fields(query), " ")
	if compact == "" {
		return "sql.query"
	}

	const maxLen = 512
	if len(compact) > maxLen {
		return compact[:maxLen]
	}
	return compact
}

func queryOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}

func queryTable(query string) string {
	lowered := strings.ToLower(query)
	for _, table := range tracedTables {
		if strings.Contains(lowered, table) {
			return table
		}
	}
	return ""
}
