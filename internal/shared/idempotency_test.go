package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordedExec struct {
	sql  string
	args []any
}

type fakeKeyDB struct {
	calls []recordedExec
	err   error
}

func (f *fakeKeyDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, recordedExec{sql: sql, args: args})
	return pgconn.CommandTag{}, f.err
}

func TestScopedIdempotencyKey(t *testing.T) {
	require.Equal(t, "7:order-desks", ScopedIdempotencyKey(7, "  order-desks "))
	require.Empty(t, ScopedIdempotencyKey(7, "   "))
	require.Empty(t, ScopedIdempotencyKey(0, "order-desks"))
}

func TestIdempotencyClaimStampsUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	now := time.Date(2025, 1, 1, 6, 30, 0, 0, jakarta)
	db := &fakeKeyDB{}
	store := NewIdempotencyStore(db).WithClock(func() time.Time { return now })

	require.NoError(t, store.CheckAndInsert(context.Background(), "7:k", "procurement.create.PO"))
	require.Len(t, db.calls, 1)
	stamped := db.calls[0].args[2].(time.Time)
	require.Equal(t, time.UTC, stamped.Location())
	require.True(t, stamped.Equal(now))

	require.NoError(t, store.Cleanup(context.Background(), 24*time.Hour))
	cutoff := db.calls[1].args[0].(time.Time)
	require.Equal(t, time.UTC, cutoff.Location())
	require.True(t, cutoff.Equal(time.Date(2024, 12, 30, 23, 30, 0, 0, time.UTC)))
}

func TestIdempotencyConflictAndFailures(t *testing.T) {
	db := &fakeKeyDB{err: &pgconn.PgError{Code: "23505"}}
	store := NewIdempotencyStore(db)
	require.ErrorIs(t, store.CheckAndInsert(context.Background(), "7:k", "procurement.create.PO"), ErrIdempotencyConflict)

	db.err = errors.New("connection reset")
	err := store.CheckAndInsert(context.Background(), "7:k", "procurement.create.PO")
	require.ErrorContains(t, err, "shared: claim idempotency key")
	require.NotErrorIs(t, err, ErrIdempotencyConflict)

	require.Error(t, store.CheckAndInsert(context.Background(), "", "procurement.create.PO"))
	require.Error(t, store.Delete(context.Background(), ""))

	var missing *IdempotencyStore
	require.ErrorIs(t, missing.CheckAndInsert(context.Background(), "k", "m"), errNoIdempotencyStore)
	require.NoError(t, missing.Cleanup(context.Background(), time.Hour))
}
