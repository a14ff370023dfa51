package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/procureflow/internal/platform/db"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

const numberConstraint = "documents_number_key"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction. State writes lock
// their row with FOR UPDATE, so a waiting writer re-reads the committed row
// instead of failing with a serialization error.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// CountCreated counts documents of a type created in [from, to), soft
// deleted rows included so their numbers are never handed out again.
func (r *Repository) CountCreated(ctx context.Context, docType workflow.DocType, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents
WHERE doc_type = $1 AND created_at >= $2 AND created_at < $3`, string(docType), from, to).Scan(&n)
	return n, err
}

const documentColumns = `id, doc_type, number, title, status, reviewer_status, approver_status,
prepared_by, requested_by, COALESCE(reviewed_by, 0), COALESCE(approved_by, 0), assigned_dynamically,
parent_id, currency, total_amount, tax_amount, grand_total, notes, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc                    Document
		docType, status        string
		reviewerSub, approvSub string
	)
	err := row.Scan(&doc.ID, &docType, &doc.Number, &doc.Title, &status, &reviewerSub, &approvSub,
		&doc.PreparedByID, &doc.RequestedByID, &doc.ReviewedByID, &doc.ApprovedByID, &doc.AssignedDynamically,
		&doc.ParentID, &doc.Currency, &doc.TotalAmount, &doc.TaxAmount, &doc.GrandTotal, &doc.Notes,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	doc.Type = workflow.DocType(docType)
	doc.Status = workflow.Status(status)
	doc.ReviewerStatus = workflow.SubStatus(reviewerSub)
	doc.ApproverStatus = workflow.SubStatus(approvSub)
	return doc, nil
}

func getDocument(ctx context.Context, q querier, id uuid.UUID, lock bool) (Document, error) {
	sql := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND deleted_at IS NULL`
	if lock {
		sql += ` FOR UPDATE`
	}
	doc, err := scanDocument(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return Document{}, err
	}
	lines, err := getLines(ctx, q, id)
	if err != nil {
		return Document{}, err
	}
	doc.Lines = lines
	return doc, nil
}

func getLines(ctx context.Context, q querier, documentID uuid.UUID) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, line_no, description, quantity, unit_price, tax_rate, amount, tax_amount
FROM document_lines WHERE document_id = $1 ORDER BY line_no`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.LineNo, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.Amount, &l.TaxAmount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetDocument returns a document and its lines.
func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	return getDocument(ctx, r.pool, id, false)
}

var sortColumns = map[string]string{
	"created_at":  "created_at",
	"number":      "number",
	"status":      "status",
	"grand_total": "grand_total",
	"updated_at":  "updated_at",
}

// ListDocuments returns documents without lines plus the unpaged total.
func (r *Repository) ListDocuments(ctx context.Context, filters ListFilters) ([]Document, int, error) {
	conds := []string{"deleted_at IS NULL", "doc_type = $1"}
	args := []any{string(filters.Type)}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		args = append(args, "%"+search+"%")
		conds = append(conds, fmt.Sprintf("(number ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		dir = "ASC"
	}
	args = append(args, filters.Limit, filters.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		documentColumns, where, column, dir, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (t *txRepo) InsertDocument(ctx context.Context, doc Document) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO documents (id, doc_type, number, title, status, reviewer_status, approver_status,
prepared_by, requested_by, reviewed_by, approved_by, assigned_dynamically, parent_id, currency,
total_amount, tax_amount, grand_total, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		doc.ID, string(doc.Type), doc.Number, doc.Title, string(doc.Status), string(doc.ReviewerStatus), string(doc.ApproverStatus),
		doc.PreparedByID, doc.RequestedByID, nullableID(doc.ReviewedByID), nullableID(doc.ApprovedByID), doc.AssignedDynamically,
		doc.ParentID, doc.Currency, doc.TotalAmount, doc.TaxAmount, doc.GrandTotal, doc.Notes, doc.CreatedAt, doc.UpdatedAt)
	if isNumberViolation(err) {
		return fmt.Errorf("insert %s: %w", doc.Number, workflow.ErrUniqueViolation)
	}
	return err
}

func (t *txRepo) InsertLine(ctx context.Context, line Line) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO document_lines (id, document_id, line_no, description, quantity, unit_price, tax_rate, amount, tax_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		line.ID, line.DocumentID, line.LineNo, line.Description, line.Quantity, line.UnitPrice, line.TaxRate, line.Amount, line.TaxAmount)
	return err
}

func (t *txRepo) DeleteLines(ctx context.Context, documentID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, documentID)
	return err
}

func (t *txRepo) LockDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	return getDocument(ctx, t.tx, id, true)
}

func (t *txRepo) UpdateDraft(ctx context.Context, doc Document) error {
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET title=$2, requested_by=$3, currency=$4, total_amount=$5, tax_amount=$6,
grand_total=$7, notes=$8, updated_at=$9 WHERE id=$1 AND deleted_at IS NULL`,
		doc.ID, doc.Title, doc.RequestedByID, doc.Currency, doc.TotalAmount, doc.TaxAmount, doc.GrandTotal, doc.Notes, doc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, doc.ID)
	}
	return nil
}

func (t *txRepo) UpdateState(ctx context.Context, id uuid.UUID, st workflow.State, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET status=$2, reviewer_status=$3, approver_status=$4,
reviewed_by=$5, approved_by=$6, assigned_dynamically=$7, updated_at=$8 WHERE id=$1 AND deleted_at IS NULL`,
		id, string(st.Status), string(st.ReviewerStatus), string(st.ApproverStatus),
		nullableID(st.ReviewedByID), nullableID(st.ApprovedByID), st.AssignedDynamically, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE documents SET deleted_at=$2, updated_at=$2 WHERE id=$1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return nil
}

func isNumberViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == numberConstraint
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
