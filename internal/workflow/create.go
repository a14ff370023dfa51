package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultMaxAttempts bounds the optimistic creation loop.
const DefaultMaxAttempts = 3

// RetryObserver is notified about number collisions.
type RetryObserver interface {
	NumberCollision(docType DocType)
}

// Creator runs number generation and insert in a bounded retry loop.
type Creator struct {
	numbers     *NumberGenerator
	maxAttempts int
	logger      *slog.Logger
	observer    RetryObserver
}

// NewCreator constructs a Creator. maxAttempts <= 0 selects DefaultMaxAttempts.
func NewCreator(numbers *NumberGenerator, maxAttempts int, logger *slog.Logger, observer RetryObserver) *Creator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Creator{numbers: numbers, maxAttempts: maxAttempts, logger: logger, observer: observer}
}

// InsertFunc persists a record under the given number, stamped with
// createdAt. It must return an error matching ErrUniqueViolation when the
// number is already taken.
type InsertFunc[T any] func(ctx context.Context, number string, createdAt time.Time) (T, error)

// Create generates a number and inserts the record, retrying only on number
// collisions. Any other error is returned immediately.
func Create[T any](ctx context.Context, c *Creator, docType DocType, insert InsertFunc[T]) (T, error) {
	var zero T
	var last error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		number, createdAt, err := c.numbers.Next(ctx, docType)
		if err != nil {
			return zero, err
		}
		record, err := insert(ctx, number, createdAt)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrUniqueViolation) {
			return zero, err
		}
		last = err
		if c.observer != nil {
			c.observer.NumberCollision(docType)
		}
		c.logger.Warn("document number collision, retrying",
			slog.String("type", string(docType)),
			slog.String("number", number),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.maxAttempts))
	}
	return zero, &ExhaustedError{Attempts: c.maxAttempts, Last: last}
}
