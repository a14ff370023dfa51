package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	jobmetrics "github.com/odyssey-erp/procureflow/internal/jobs"
)

var docLabels = map[string]string{
	"IOM": "Inter-Office Memo",
	"PO":  "Purchase Order",
	"PR":  "Payment Request",
	"CR":  "Check Request",
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail through a plain SMTP relay such as Mailpit.
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

// NewSMTPSender constructs a sender for host:port.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{Addr: host + ":" + strconv.Itoa(port), From: from}
}

// Send writes a text/plain message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := "From: " + s.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		body
	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg))
}

// StatusEmailJob renders and sends document status emails.
type StatusEmailJob struct {
	Sender  Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatusEmailJob wires dependencies for the status email handler.
func NewStatusEmailJob(sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusEmailJob {
	return &StatusEmailJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeStatusEmail tasks.
func (j *StatusEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("status email: handler not configured")
	}
	var payload StatusEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || !payload.Valid() {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeStatusEmail)
	subject, body := RenderStatusEmail(payload)
	err := j.Sender.Send(ctx, payload.To, subject, body)
	if err != nil {
		j.logger().Warn("send status email",
			slog.String("number", payload.DocumentNumber),
			slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.EmailSent(payload.DocumentType)
	return tracker.End(nil)
}

func (j *StatusEmailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// RenderStatusEmail builds the subject and body, e.g.
// "[PO-2024-0007] Purchase Order is now Pending Approval".
func RenderStatusEmail(p StatusEmailPayload) (string, string) {
	label, ok := docLabels[p.DocumentType]
	if !ok {
		label = p.DocumentType
	}
	status := HumanStatus(p.Status)
	subject := fmt.Sprintf("[%s] %s is now %s", p.DocumentNumber, label, status)
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nThe %s %s you prepared is now %s.\n", label, p.DocumentNumber, status)
	b.WriteString("\nThis message was sent automatically, please do not reply.\n")
	return subject, b.String()
}

// HumanStatus turns PENDING_APPROVAL into "Pending Approval".
func HumanStatus(status string) string {
	words := strings.ReplaceAll(strings.ToLower(status), "_", " ")
	return cases.Title(language.English).String(words)
}
