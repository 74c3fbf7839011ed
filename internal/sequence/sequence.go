// Package sequence produces the human-readable, date-scoped identifiers used
// for orders and return requests.
package sequence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"
)

const ReturnPrefix = "RET"

// Counter reports how many records were created in a time window. Backed by
// the order store in production.
type Counter interface {
	CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	CountReturnsRequestedBetween(ctx context.Context, from, to time.Time) (int, error)
}

type Generator struct {
	counter Counter
	prefix  string
	logger  *slog.Logger
	now     func() time.Time
}

func NewGenerator(counter Counter, orderPrefix string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{
		counter: counter,
		prefix:  orderPrefix,
		logger:  logger.With("component", "sequence"),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// NextOrderNumber returns PREFIX-YYYYMMDD-NNN where NNN is the count of
// orders already created today, plus one. The count-then-format scheme can
// race with a concurrent checkout; callers retry on a uniqueness conflict.
// A failing count never aborts checkout: the fallback identifier is used.
func (g *Generator) NextOrderNumber(ctx context.Context) string {
	now := g.now()
	count, err := g.counter.CountOrdersCreatedBetween(ctx, startOfDay(now), endOfDay(now))
	if err != nil {
		g.logger.Warn("order count failed, using fallback order number", "error", err)
		return g.Fallback(g.prefix)
	}
	return formatDaySequenced(g.prefix, now, count+1)
}

// NextReturnID returns RET-YYYYMMDD-NNN, day-sequenced like order numbers.
func (g *Generator) NextReturnID(ctx context.Context) string {
	now := g.now()
	count, err := g.counter.CountReturnsRequestedBetween(ctx, startOfDay(now), endOfDay(now))
	if err != nil {
		g.logger.Warn("return count failed, using fallback return id", "error", err)
		return g.Fallback(ReturnPrefix)
	}
	return formatDaySequenced(ReturnPrefix, now, count+1)
}

// FallbackOrderNumber is the guaranteed-unique form used once the bounded
// retry on sequence conflicts is exhausted.
func (g *Generator) FallbackOrderNumber() string {
	return g.Fallback(g.prefix)
}

func (g *Generator) Fallback(prefix string) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, g.now().UnixMilli(), rand.IntN(10000))
}

func formatDaySequenced(prefix string, day time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Format("20060102"), n)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
