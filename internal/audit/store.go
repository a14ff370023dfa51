package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore menyimpan audit trail di tabel audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore membuat store audit berbasis PostgreSQL.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Append inserts a record. audit_logs has no update/delete grants.
func (s *PGStore) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_logs (id, action, model, record_id, user_id, user_name, changes, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, string(rec.Action), rec.Model, rec.RecordID, rec.UserID, rec.UserName, []byte(rec.Changes), rec.At)
	return err
}

// Query returns records newest first.
func (s *PGStore) Query(ctx context.Context, filters TrailFilters, limit, offset int) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filters.Model != "" {
		add("model = $%d", filters.Model)
	}
	if filters.RecordID != "" {
		add("record_id = $%d", filters.RecordID)
	}
	if filters.UserID > 0 {
		add("user_id = $%d", filters.UserID)
	}
	if filters.Action != "" {
		add("action = $%d", string(filters.Action))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To)
	}
	query := `SELECT id, action, model, record_id, user_id, user_name, changes, occurred_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec     Record
			action  string
			changes []byte
		)
		if err := rows.Scan(&rec.ID, &action, &rec.Model, &rec.RecordID, &rec.UserID, &rec.UserName, &changes, &rec.At); err != nil {
			return nil, err
		}
		rec.Action = Action(action)
		rec.Changes = changes
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
