package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
}

// QueryTracer logs failed and slow queries.
type QueryTracer struct {
	Slow time.Duration
}

func (t QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: time.Now()})
}

func (t QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	d := time.Since(qs.start)

	switch {
	case data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows):
		slog.ErrorContext(ctx, "postgres: query failed", "sql", qs.sql, "duration", d, "error", data.Err)
	case t.Slow > 0 && d > t.Slow:
		slog.WarnContext(ctx, "postgres: slow query", "sql", qs.sql, "duration", d)
	}
}
