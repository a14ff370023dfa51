package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action enumerates audit log actions.
type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionDelete       Action = "DELETE"
	ActionStatusChange Action = "STATUS_CHANGE"
)

// Valid reports whether a is a known audit action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionStatusChange:
		return true
	}
	return false
}

// Entry is the payload of a single audit write.
type Entry struct {
	Model    string
	RecordID string
	UserID   int64
	UserName string
	Changes  any
}

// Store appends and queries audit records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, filters TrailFilters, limit, offset int) ([]Record, error)
}

// Writer appends immutable audit records. Failures are logged and never
// returned to the caller.
type Writer struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter constructs a Writer.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger, now: time.Now}
}

// Log writes one audit entry.
func (w *Writer) Log(ctx context.Context, action Action, entry Entry) {
	if w == nil {
		return
	}
	rec, err := w.build(action, entry)
	if err == nil {
		err = w.store.Append(ctx, rec)
	}
	if err != nil {
		w.logger.Error("audit log write failed",
			slog.String("action", string(action)),
			slog.String("model", entry.Model),
			slog.String("record_id", entry.RecordID),
			slog.Any("error", err))
	}
}

func (w *Writer) build(action Action, entry Entry) (Record, error) {
	if w.store == nil {
		return Record{}, errors.New("audit store not configured")
	}
	if !action.Valid() {
		return Record{}, fmt.Errorf("audit: unknown action %q", action)
	}
	if entry.Model == "" || entry.RecordID == "" {
		return Record{}, errors.New("audit log requires model/record_id")
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return Record{}, fmt.Errorf("audit: marshal changes: %w", err)
	}
	return Record{
		ID:       uuid.New(),
		Action:   action,
		Model:    entry.Model,
		RecordID: entry.RecordID,
		UserID:   entry.UserID,
		UserName: entry.UserName,
		Changes:  changes,
		At:       w.now().UTC(),
	}, nil
}
