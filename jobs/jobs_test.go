package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/procureflow/internal/jobs"
)

type recordingSender struct {
	to, subject, body string
	err               error
}

func (s *recordingSender) Send(ctx context.Context, to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return s.err
}

func TestHumanStatus(t *testing.T) {
	require.Equal(t, "Pending Approval", HumanStatus("PENDING_APPROVAL"))
	require.Equal(t, "Approved", HumanStatus("APPROVED"))
}

func TestRenderStatusEmail(t *testing.T) {
	subject, body := RenderStatusEmail(StatusEmailPayload{
		To: "prep@example.com", DocumentType: "PO", DocumentNumber: "PO-2024-0007", Status: "PENDING_APPROVAL",
	})
	require.Equal(t, "[PO-2024-0007] Purchase Order is now Pending Approval", subject)
	require.Contains(t, body, "Purchase Order PO-2024-0007")
}

func TestStatusEmailJobSends(t *testing.T) {
	sender := &recordingSender{}
	job := NewStatusEmailJob(sender, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewStatusEmailTask(StatusEmailPayload{
		To: "prep@example.com", DocumentType: "IOM", DocumentNumber: "IOM-2024-0001", Status: "APPROVED",
	})
	require.NoError(t, err)
	require.Equal(t, TaskTypeStatusEmail, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "prep@example.com", sender.to)
	require.Equal(t, "[IOM-2024-0001] Inter-Office Memo is now Approved", sender.subject)
}

func TestStatusEmailJobSkipsInvalidPayload(t *testing.T) {
	job := NewStatusEmailJob(&recordingSender{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeStatusEmail, []byte(`{"to":""}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStatusEmailJobReturnsSendErrorForRetry(t *testing.T) {
	boom := errors.New("smtp down")
	job := NewStatusEmailJob(&recordingSender{err: boom}, nil, nil)
	task, err := NewStatusEmailTask(StatusEmailPayload{To: "a@b.c", DocumentType: "PR", DocumentNumber: "PR-2024-0001", Status: "REJECTED"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type stubPurger struct {
	before time.Time
}

func (s *stubPurger) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	s.before = before
	return 4, nil
}

func TestNotificationsPurgeDefaultsCutoff(t *testing.T) {
	purger := &stubPurger{}
	job := NewNotificationsPurgeJob(purger, nil, nil)
	job.clock = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	task, err := NewNotificationsPurgeTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), purger.before)
}

type stubKeys struct {
	retention time.Duration
	err       error
}

func (s *stubKeys) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.retention = olderThan
	return s.err
}

func TestNotificationsPurgeTrimsIdempotencyKeys(t *testing.T) {
	keys := &stubKeys{}
	job := NewNotificationsPurgeJob(&stubPurger{}, nil, nil)
	job.Keys = keys

	task, err := NewNotificationsPurgeTask(30)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, keys.retention)

	keys.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "default", body["queue"])
}
