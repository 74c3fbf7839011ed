package sequence

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

type fakeCounter struct {
	orders     int
	returns    int
	err        error
	lastFrom   time.Time
	lastTo     time.Time
}

func (c *fakeCounter) CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	c.lastFrom, c.lastTo = from, to
	return c.orders, c.err
}

func (c *fakeCounter) CountReturnsRequestedBetween(ctx context.Context, from, to time.Time) (int, error) {
	c.lastFrom, c.lastTo = from, to
	return c.returns, c.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextOrderNumber(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		orders int
		want   string
	}{
		{name: "first order of the day", orders: 0, want: "ORD-20260310-001"},
		{name: "third order of the day", orders: 2, want: "ORD-20260310-003"},
		{name: "three digit padding overflows gracefully", orders: 999, want: "ORD-20260310-1000"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			counter := &fakeCounter{orders: tt.orders}
			g := NewGenerator(counter, "ORD", nil).WithClock(fixedClock(day))

			if got := g.NextOrderNumber(context.Background()); got != tt.want {
				t.Fatalf("NextOrderNumber = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextOrderNumberCountsOnlyToday(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	counter := &fakeCounter{}
	g := NewGenerator(counter, "ORD", nil).WithClock(fixedClock(day))
	g.NextOrderNumber(context.Background())

	wantFrom := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !counter.lastFrom.Equal(wantFrom) || !counter.lastTo.Equal(wantTo) {
		t.Fatalf("count window = [%v, %v), want [%v, %v)", counter.lastFrom, counter.lastTo, wantFrom, wantTo)
	}
}

func TestNextReturnID(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	counter := &fakeCounter{returns: 1}
	g := NewGenerator(counter, "ORD", nil).WithClock(fixedClock(day))

	if got := g.NextReturnID(context.Background()); got != "RET-20260310-002" {
		t.Fatalf("NextReturnID = %q, want RET-20260310-002", got)
	}
}

func TestCountFailureFallsBack(t *testing.T) {
	t.Parallel()

	counter := &fakeCounter{err: errors.New("connection refused")}
	g := NewGenerator(counter, "ORD", nil)

	got := g.NextOrderNumber(context.Background())
	if !regexp.MustCompile(`^ORD-\d+-\d{4}$`).MatchString(got) {
		t.Fatalf("fallback order number %q does not match ORD-<millis>-<rand>", got)
	}
}

func TestFallbackFormats(t *testing.T) {
	t.Parallel()

	g := NewGenerator(&fakeCounter{}, "ORD", nil)

	if got := g.FallbackOrderNumber(); !strings.HasPrefix(got, "ORD-") {
		t.Fatalf("FallbackOrderNumber = %q, want ORD- prefix", got)
	}
	if got := g.Fallback(ReturnPrefix); !strings.HasPrefix(got, "RET-") {
		t.Fatalf("Fallback = %q, want RET- prefix", got)
	}
}
