package jobs

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeStatusEmail is the task type for document status emails.
	TaskTypeStatusEmail = "mail:status"
	// TaskNotificationsPurge removes old read notifications.
	TaskNotificationsPurge = "notifications:purge"
)

// StatusEmailPayload describes a document status email.
type StatusEmailPayload struct {
	To             string `json:"to"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Status         string `json:"status"`
}

// Valid reports whether the payload can be delivered.
func (p StatusEmailPayload) Valid() bool {
	return strings.TrimSpace(p.To) != "" && p.DocumentNumber != "" && p.Status != ""
}

// NewStatusEmailTask constructs an Asynq task.
func NewStatusEmailTask(payload StatusEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeStatusEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NotificationsPurgePayload contains options for the purge job.
type NotificationsPurgePayload struct {
	OlderThanDays int `json:"older_than_days"`
}

// NewNotificationsPurgeTask builds a purge task.
func NewNotificationsPurgeTask(olderThanDays int) (*asynq.Task, error) {
	body, err := json.Marshal(NotificationsPurgePayload{OlderThanDays: olderThanDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationsPurge, body, asynq.Queue(QueueDefault)), nil
}
