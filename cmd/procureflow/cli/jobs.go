package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/procureflow/jobs"
)

// Enqueuer is the subset of asynq.Client used by the CLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector is the subset of asynq.Inspector used by the CLI.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector QueueInspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	for _, closer := range c.closers {
		if closeErr := closer.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a prepared task.
func (c *JobsCLI) Trigger(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// Run executes `jobs <subcommand>` and returns the process exit code.
//
//	jobs stats
//	jobs purge [-days 90]
//	jobs email -to addr -type PO -number PO-2024-0001 -status APPROVED
func (c *JobsCLI) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: jobs stats|purge|email [flags]")
		return 2
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return 0
	case "purge":
		fs := flag.NewFlagSet("jobs purge", flag.ContinueOnError)
		fs.SetOutput(stderr)
		days := fs.Int("days", 90, "purge read notifications older than this many days")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		task, err := jobs.NewNotificationsPurgeTask(*days)
		return c.enqueue(ctx, task, err, stdout, stderr)
	case "email":
		fs := flag.NewFlagSet("jobs email", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var payload jobs.StatusEmailPayload
		fs.StringVar(&payload.To, "to", "", "recipient address")
		fs.StringVar(&payload.DocumentType, "type", "", "document type code")
		fs.StringVar(&payload.DocumentNumber, "number", "", "document number")
		fs.StringVar(&payload.Status, "status", "", "document status")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if !payload.Valid() {
			_, _ = fmt.Fprintln(stderr, "jobs email: -to, -number and -status are required")
			return 2
		}
		task, err := jobs.NewStatusEmailTask(payload)
		return c.enqueue(ctx, task, err, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
}

func (c *JobsCLI) enqueue(ctx context.Context, task *asynq.Task, buildErr error, stdout, stderr io.Writer) int {
	if buildErr != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: build task: %v\n", buildErr)
		return 1
	}
	info, err := c.Trigger(ctx, task)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: enqueue %s: %v\n", task.Type(), err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}
