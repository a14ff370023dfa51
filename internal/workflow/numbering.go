package workflow

import (
	"context"
	"fmt"
	"time"
)

// Counter counts documents of a type created within [from, to).
type Counter interface {
	CountCreated(ctx context.Context, docType DocType, from, to time.Time) (int, error)
}

// NumberGenerator derives "{PREFIX}-{YEAR}-{seq}" from the yearly count.
// The result is only unused when no creation runs concurrently; Create
// retries on collisions.
type NumberGenerator struct {
	counter Counter
	now     func() time.Time
}

// NewNumberGenerator constructs a generator. A nil clock uses time.Now.
func NewNumberGenerator(counter Counter, now func() time.Time) *NumberGenerator {
	if now == nil {
		now = time.Now
	}
	return &NumberGenerator{counter: counter, now: now}
}

// Next returns the next number for the document type in the current year
// together with the instant it was derived from. The record must be stored
// with that instant as its creation time, otherwise the yearly count and
// the number's year drift apart around New Year.
func (g *NumberGenerator) Next(ctx context.Context, docType DocType) (string, time.Time, error) {
	ts := g.now()
	from, to := YearBounds(ts)
	count, err := g.counter.CountCreated(ctx, docType, from, to)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("workflow: count %s documents: %w", docType, err)
	}
	return FormatNumber(docType, ts.Year(), count+1), ts, nil
}

// YearBounds returns Jan 1 00:00 of the year of ts and of the following year.
func YearBounds(ts time.Time) (time.Time, time.Time) {
	start := time.Date(ts.Year(), time.January, 1, 0, 0, 0, 0, ts.Location())
	return start, start.AddDate(1, 0, 0)
}

// FormatNumber renders a document number with a four digit sequence.
func FormatNumber(docType DocType, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", docType.Prefix(), year, seq)
}
