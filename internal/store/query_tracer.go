package store

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type queryStartContextKey struct{}

type queryStart struct {
	sql     string
	startAt time.Time
}

// queryTracer logs query timing at debug level.
type queryTracer struct {
	logger *slog.Logger
}

func newQueryTracer(logger *slog.Logger) *queryTracer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &queryTracer{logger: logger.With("component", "db")}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartContextKey{}, queryStart{
		sql:     normalizeQuery(data.SQL),
		startAt: time.Now(),
	})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartContextKey{}).(queryStart)
	if !ok {
		return
	}

	logger := t.logger.With(
		"sql", start.sql,
		"operation", queryOperation(start.sql),
		"duration_ms", time.Since(start.startAt).Milliseconds(),
	)
	if data.Err != nil {
		logger.Debug("query failed", "error", data.Err)
		return
	}
	logger.Debug("query completed", "rows_affected", data.CommandTag.RowsAffected())
}

func normalizeQuery(query string) string {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return "sql.query"
	}

	normalized = strings.Join(strings.Fields(normalized), " ")
	const maxLen = 512
	if len(normalized) > maxLen {
		return normalized[:maxLen]
	}
	return normalized
}

func queryOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}
