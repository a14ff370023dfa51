package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/procureflow/internal/jobs"
)

const (
	defaultPurgeDays = 90
	keyRetention     = 24 * time.Hour
)

// NotificationPurger deletes read notifications created before the cutoff.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

// KeyPurger drops idempotency keys older than the retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NotificationsPurgeJob trims the notifications table and, when Keys is set,
// expired idempotency keys.
type NotificationsPurgeJob struct {
	Store   NotificationPurger
	Keys    KeyPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewNotificationsPurgeJob wires dependencies for the purge handler.
func NewNotificationsPurgeJob(store NotificationPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationsPurgeJob {
	return &NotificationsPurgeJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes purge tasks.
func (j *NotificationsPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("notifications purge: handler not configured")
	}
	var payload NotificationsPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThanDays <= 0 {
		payload.OlderThanDays = defaultPurgeDays
	}

	tracker := j.Metrics.Track(TaskNotificationsPurge)
	cutoff := j.clock().AddDate(0, 0, -payload.OlderThanDays)
	removed, err := j.Store.PurgeRead(ctx, cutoff)
	if err != nil {
		j.logger().Error("purge notifications", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("purged notifications", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	if j.Keys != nil {
		if err := j.Keys.Cleanup(ctx, keyRetention); err != nil {
			j.logger().Error("purge idempotency keys", slog.Any("error", err))
			return tracker.End(err)
		}
	}
	return tracker.End(nil)
}

func (j *NotificationsPurgeJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
