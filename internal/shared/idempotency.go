package shared

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrIdempotencyConflict indicates the key was already claimed.
var ErrIdempotencyConflict = errors.New("shared: idempotency key already processed")

var errNoIdempotencyStore = errors.New("shared: idempotency store not initialised")

const uniqueViolation = "23505"

// keyExecer is the slice of pgxpool.Pool the store needs.
type keyExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IdempotencyStore records Idempotency-Key headers that already produced a
// document so client retries are answered with a conflict.
type IdempotencyStore struct {
	db  keyExecer
	now func() time.Time
}

// NewIdempotencyStore constructs the store over a pgx pool.
func NewIdempotencyStore(db keyExecer) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// WithClock overrides the clock used for created_at and cleanup cutoffs.
func (s *IdempotencyStore) WithClock(now func() time.Time) *IdempotencyStore {
	if now != nil {
		s.now = now
	}
	return s
}

// ScopedIdempotencyKey binds a client supplied key to the acting user so two
// users reusing the same header value do not collide. Blank keys yield "".
func ScopedIdempotencyKey(actorID int64, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || actorID <= 0 {
		return ""
	}
	return strconv.FormatInt(actorID, 10) + ":" + raw
}

// CheckAndInsert claims key under module. A key that was already claimed
// returns ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return errNoIdempotencyStore
	}
	if key == "" {
		return errors.New("shared: idempotency key required")
	}
	if module == "" {
		return errors.New("shared: idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("shared: claim idempotency key: %w", err)
	}
	return nil
}

// Cleanup removes keys claimed more than olderThan ago.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := s.now().UTC().Add(-olderThan)
	if _, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff); err != nil {
		return fmt.Errorf("shared: purge idempotency keys: %w", err)
	}
	return nil
}

// Delete releases a key after the request it guarded failed.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if key == "" {
		return errors.New("shared: idempotency key required")
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key); err != nil {
		return fmt.Errorf("shared: release idempotency key: %w", err)
	}
	return nil
}
