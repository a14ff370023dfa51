package e2e

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/procureflow/internal/jobs"
	"github.com/odyssey-erp/procureflow/internal/notify"
	"github.com/odyssey-erp/procureflow/internal/procurement"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
	"github.com/odyssey-erp/procureflow/jobs"
)

type inbox struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func (i *inbox) Notify(ctx context.Context, userID int64, message string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.messages[userID] = append(i.messages[userID], message)
	return nil
}

type directory map[int64]string

func (d directory) Email(ctx context.Context, userID int64) (string, error) {
	return d[userID], nil
}

// taskQueue stands in for the asynq client: it keeps the built tasks so the
// test can hand them to the worker handler.
type taskQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *taskQueue) EnqueueStatusEmail(ctx context.Context, payload jobs.StatusEmailPayload) (*asynq.TaskInfo, error) {
	task, err := jobs.NewStatusEmailTask(payload)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	return &asynq.TaskInfo{Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type outbox struct {
	subjects []string
	to       []string
}

func (o *outbox) Send(ctx context.Context, to, subject, body string) error {
	o.to = append(o.to, to)
	o.subjects = append(o.subjects, subject)
	return nil
}

func TestApprovalSideEffectPipeline(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), "dashboard")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	notes := &inbox{messages: map[int64][]string{}}
	queue := &taskQueue{}
	dispatcher := notify.NewDispatcher(notify.Config{
		Notifier:    notes,
		Mailer:      notify.NewQueueMailer(queue),
		Broadcaster: notify.NewRedisBroadcaster(client),
		Directory:   directory{1: "pat@example.com"},
	})

	doc := procurement.Document{
		ID:             uuid.New(),
		Type:           workflow.DocPurchaseOrder,
		Number:         "PO-2024-0007",
		Status:         workflow.StatusPendingApproval,
		ReviewerStatus: workflow.SubApproved,
		ApproverStatus: workflow.SubPending,
		PreparedByID:   1,
		ReviewedByID:   2,
		ApprovedByID:   3,
	}
	dispatcher.Dispatch(context.Background(), procurement.TransitionEvent{
		Document: doc,
		Actor:    shared.NewActor(2, "rita"),
		Role:     workflow.RoleReviewer,
		Name:     string(workflow.ActionApprove),
		From:     doc.State(),
	})

	require.Len(t, notes.messages[1], 1)
	require.Len(t, notes.messages[3], 1)
	require.Contains(t, notes.messages[3][0], "approved by rita (reviewer)")

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)
	var env notify.Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	require.Equal(t, notify.EventDocumentUpdated, env.Event)

	reg := prometheus.NewRegistry()
	sent := &outbox{}
	job := jobs.NewStatusEmailJob(sent, nil, jobmetrics.NewMetrics(reg))
	require.Len(t, queue.tasks, 1)
	for _, task := range queue.tasks {
		require.NoError(t, job.Handle(context.Background(), task))
	}
	require.Equal(t, []string{"pat@example.com"}, sent.to)
	require.Equal(t, []string{"[PO-2024-0007] Purchase Order is now Pending Approval"}, sent.subjects)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 1.0, metricValue(t, families, "procureflow_jobs_total", map[string]string{"job": jobs.TaskTypeStatusEmail, "status": "success"}))
	require.Equal(t, 1.0, metricValue(t, families, "procureflow_status_emails_total", map[string]string{"doc_type": "PO"}))
}

func TestSlowSinkDoesNotLoseOtherEffects(t *testing.T) {
	notes := &inbox{messages: map[int64][]string{}}
	queue := &taskQueue{}
	dispatcher := notify.NewDispatcher(notify.Config{
		Notifier:    notes,
		Mailer:      notify.NewQueueMailer(queue),
		Broadcaster: slowBroadcaster{delay: 20 * time.Millisecond},
		Directory:   directory{1: "pat@example.com"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := procurement.Document{ID: uuid.New(), Type: workflow.DocMemo, Number: "IOM-2024-0001",
		Status: workflow.StatusPendingApproval, PreparedByID: 1, ReviewedByID: 2}
	dispatcher.Dispatch(ctx, procurement.TransitionEvent{
		Document: doc,
		Actor:    shared.NewActor(1, "pat"),
		Name:     string(workflow.TransitionSubmit),
		From:     workflow.State{Status: workflow.StatusDraft},
	})

	require.Len(t, notes.messages[1], 1)
	require.Len(t, notes.messages[2], 1)
	require.Len(t, queue.tasks, 1)
}

type slowBroadcaster struct {
	delay time.Duration
}

func (s slowBroadcaster) Broadcast(ctx context.Context, channel, event string, payload any) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) && fam.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
