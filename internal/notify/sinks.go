package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/procureflow/jobs"
)

// ErrUnknownUser is returned when an email lookup finds no user.
var ErrUnknownUser = errors.New("notify: unknown user")

// Store persists in-app notifications.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore constructs a notification store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Notify inserts an unread notification.
func (s *Store) Notify(ctx context.Context, userID int64, message string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO notifications (user_id, message, created_at) VALUES ($1, $2, $3)`,
		userID, message, s.now().UTC())
	return err
}

// PurgeRead deletes read notifications created before the cutoff.
func (s *Store) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UserDirectory looks up user email addresses.
type UserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory constructs a UserDirectory.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// Email returns the address of an active user.
func (d *UserDirectory) Email(ctx context.Context, userID int64) (string, error) {
	var email string
	err := d.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1 AND is_active`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrUnknownUser, userID)
	}
	return email, err
}

// StatusEmailQueue is the part of jobs.Client used for email delivery.
type StatusEmailQueue interface {
	EnqueueStatusEmail(ctx context.Context, payload jobs.StatusEmailPayload) (*asynq.TaskInfo, error)
}

// QueueMailer hands status emails to the background worker.
type QueueMailer struct {
	queue StatusEmailQueue
}

// NewQueueMailer constructs a QueueMailer.
func NewQueueMailer(queue StatusEmailQueue) *QueueMailer {
	return &QueueMailer{queue: queue}
}

// SendStatusEmail enqueues a mail:status task.
func (m *QueueMailer) SendStatusEmail(ctx context.Context, to, docType, number, status string) error {
	_, err := m.queue.EnqueueStatusEmail(ctx, jobs.StatusEmailPayload{
		To:             to,
		DocumentType:   docType,
		DocumentNumber: number,
		Status:         status,
	})
	return err
}

// RedisBroadcaster publishes realtime events over redis pub/sub.
type RedisBroadcaster struct {
	client redis.UniversalClient
}

// NewRedisBroadcaster constructs a broadcaster.
func NewRedisBroadcaster(client redis.UniversalClient) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

// Envelope is the message published on the channel.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Broadcast publishes the event as JSON.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel, event string, payload any) error {
	body, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, body).Err()
}
