package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type sliceCounter struct {
	created map[DocType][]time.Time
	calls   int
}

func (c *sliceCounter) CountCreated(ctx context.Context, docType DocType, from, to time.Time) (int, error) {
	c.calls++
	n := 0
	for _, ts := range c.created[docType] {
		if !ts.Before(from) && ts.Before(to) {
			n++
		}
	}
	return n, nil
}

type collisionCounter struct {
	n int
}

func (c *collisionCounter) NumberCollision(DocType) { c.n++ }

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestNumberGeneratorScopesByYearAndType(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	counter := &sliceCounter{created: map[DocType][]time.Time{
		DocPurchaseOrder: {
			time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		DocPaymentRequest: {time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}}
	gen := NewNumberGenerator(counter, fixedClock(now))

	number, issuedAt, err := gen.Next(context.Background(), DocPurchaseOrder)
	require.NoError(t, err)
	require.Equal(t, "PO-2024-0003", number)
	require.Equal(t, now, issuedAt)

	number, _, err = gen.Next(context.Background(), DocMemo)
	require.NoError(t, err)
	require.Equal(t, "IOM-2024-0001", number)
}

func TestYearBounds(t *testing.T) {
	from, to := YearBounds(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)
	require.Equal(t, "CR-2024-12345", FormatNumber(DocCheckRequest, 2024, 12345))
}

func TestCreateRetriesOnCollision(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	counter := &sliceCounter{created: map[DocType][]time.Time{}}
	observer := &collisionCounter{}
	creator := NewCreator(NewNumberGenerator(counter, fixedClock(now)), 0, nil, observer)

	taken := map[string]bool{"PO-2024-0001": true}
	var tried []string
	number, err := Create(context.Background(), creator, DocPurchaseOrder, func(ctx context.Context, number string, _ time.Time) (string, error) {
		tried = append(tried, number)
		if taken[number] {
			// a concurrent creation committed this number first
			counter.created[DocPurchaseOrder] = append(counter.created[DocPurchaseOrder], now)
			return "", fmt.Errorf("insert: %w", ErrUniqueViolation)
		}
		taken[number] = true
		return number, nil
	})
	require.NoError(t, err)
	require.Equal(t, "PO-2024-0002", number)
	require.Equal(t, []string{"PO-2024-0001", "PO-2024-0002"}, tried)
	require.Equal(t, 1, observer.n)
}

func TestCreateExhaustsAfterMaxAttempts(t *testing.T) {
	counter := &sliceCounter{created: map[DocType][]time.Time{}}
	creator := NewCreator(NewNumberGenerator(counter, nil), 3, nil, nil)

	calls := 0
	_, err := Create(context.Background(), creator, DocMemo, func(ctx context.Context, number string, _ time.Time) (int, error) {
		calls++
		return 0, ErrUniqueViolation
	})
	require.Equal(t, 3, calls)
	require.ErrorIs(t, err, ErrCreationExhausted)
	require.ErrorIs(t, err, ErrUniqueViolation)
	require.Contains(t, err.Error(), "creation failed after 3 attempts")
}

func TestCreatePropagatesOtherErrors(t *testing.T) {
	counter := &sliceCounter{created: map[DocType][]time.Time{}}
	creator := NewCreator(NewNumberGenerator(counter, nil), 3, nil, nil)
	boom := errors.New("connection reset")

	calls := 0
	_, err := Create(context.Background(), creator, DocMemo, func(ctx context.Context, number string, _ time.Time) (int, error) {
		calls++
		return 0, boom
	})
	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrCreationExhausted)
}

func TestCreateStampsRecordWithNumberingInstant(t *testing.T) {
	// the first call lands in the last millisecond of 2024, the rest in 2025
	ticks := []time.Time{
		time.Date(2024, 12, 31, 23, 59, 59, 999_000_000, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 1_000_000, time.UTC),
	}
	clock := func() time.Time {
		ts := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return ts
	}
	counter := &sliceCounter{created: map[DocType][]time.Time{}}
	creator := NewCreator(NewNumberGenerator(counter, clock), 3, nil, nil)

	taken := map[string]bool{}
	insert := func(ctx context.Context, number string, createdAt time.Time) (string, error) {
		if taken[number] {
			return "", ErrUniqueViolation
		}
		taken[number] = true
		counter.created[DocPurchaseOrder] = append(counter.created[DocPurchaseOrder], createdAt)
		return number, nil
	}

	var numbers []string
	for i := 0; i < 3; i++ {
		number, err := Create(context.Background(), creator, DocPurchaseOrder, insert)
		require.NoError(t, err)
		numbers = append(numbers, number)
	}
	require.Equal(t, []string{"PO-2024-0001", "PO-2025-0001", "PO-2025-0002"}, numbers)
}

func TestCheckParentTotal(t *testing.T) {
	err := CheckParentTotal(DocPaymentRequest, decimal.NewFromInt(1500), DocPurchaseOrder, decimal.NewFromInt(1000))
	require.ErrorIs(t, err, ErrConstraintViolation)
	require.EqualError(t, err, "Payment Request total (1500) cannot exceed Purchase Order total (1000).")

	require.NoError(t, CheckParentTotal(DocPaymentRequest, decimal.NewFromInt(1000), DocPurchaseOrder, decimal.NewFromInt(1000)))
	require.NoError(t, CheckParentTotal(DocCheckRequest, decimal.RequireFromString("999.99"), DocPurchaseOrder, decimal.NewFromInt(1000)))

	err = CheckParentTotal(DocCheckRequest, decimal.RequireFromString("1000.5"), DocPurchaseOrder, decimal.NewFromInt(1000))
	require.EqualError(t, err, "Check Request total (1000.5) cannot exceed Purchase Order total (1000).")
}
