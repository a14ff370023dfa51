// Package notify fans committed document transitions out to notifications,
// status emails and realtime broadcasts.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/procureflow/internal/procurement"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// EventDocumentUpdated is the realtime event sent after every transition.
const EventDocumentUpdated = "document.updated"

// Notifier stores an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) error
}

// Mailer sends the preparer a status summary.
type Mailer interface {
	SendStatusEmail(ctx context.Context, to, docType, number, status string) error
}

// Broadcaster publishes realtime events.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, event string, payload any) error
}

// Directory resolves user email addresses.
type Directory interface {
	Email(ctx context.Context, userID int64) (string, error)
}

// Config wires dispatcher sinks. Nil sinks are skipped.
type Config struct {
	Notifier    Notifier
	Mailer      Mailer
	Broadcaster Broadcaster
	Directory   Directory
	Channel     string
	Logger      *slog.Logger
}

// Dispatcher delivers side effects after a transition commits. Every sink is
// best effort: failures are logged and never returned.
type Dispatcher struct {
	notifier    Notifier
	mailer      Mailer
	broadcaster Broadcaster
	directory   Directory
	channel     string
	logger      *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "dashboard"
	}
	return &Dispatcher{
		notifier:    cfg.Notifier,
		mailer:      cfg.Mailer,
		broadcaster: cfg.Broadcaster,
		directory:   cfg.Directory,
		channel:     channel,
		logger:      logger,
	}
}

// Dispatch runs the four side effects concurrently and waits for them.
func (d *Dispatcher) Dispatch(ctx context.Context, evt procurement.TransitionEvent) {
	ctx = context.WithoutCancel(ctx)
	doc := evt.Document
	var g errgroup.Group

	d.spawn(&g, "notify preparer", doc, func() error {
		if d.notifier == nil || doc.PreparedByID == 0 {
			return nil
		}
		return d.notifier.Notify(ctx, doc.PreparedByID, Message(evt))
	})
	d.spawn(&g, "notify other party", doc, func() error {
		other := OtherParty(evt)
		if d.notifier == nil || other == 0 {
			return nil
		}
		return d.notifier.Notify(ctx, other, Message(evt))
	})
	d.spawn(&g, "status email", doc, func() error {
		if d.mailer == nil || d.directory == nil || doc.PreparedByID == 0 {
			return nil
		}
		to, err := d.directory.Email(ctx, doc.PreparedByID)
		if err == nil && to != "" {
			err = d.mailer.SendStatusEmail(ctx, to, string(doc.Type), doc.Number, string(doc.Status))
		}
		return err
	})
	d.spawn(&g, "broadcast", doc, func() error {
		if d.broadcaster == nil {
			return nil
		}
		return d.broadcaster.Broadcast(ctx, d.channel, EventDocumentUpdated, Payload(evt))
	})
	_ = g.Wait()
}

// spawn runs one sink. Errors and panics are reported, never propagated.
func (d *Dispatcher) spawn(g *errgroup.Group, step string, doc procurement.Document, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			d.report(step, doc, err)
		}()
		return fn()
	})
}

func (d *Dispatcher) report(step string, doc procurement.Document, err error) {
	if err == nil {
		return
	}
	d.logger.Warn("side effect failed",
		slog.String("step", step),
		slog.String("type", string(doc.Type)),
		slog.String("number", doc.Number),
		slog.Any("error", err))
}

// OtherParty returns the user who should hear about the move besides the
// preparer: the approver after a reviewer decision, the reviewer after an
// approver decision, and the reviewer when a document is submitted.
func OtherParty(evt procurement.TransitionEvent) int64 {
	doc := evt.Document
	var other int64
	switch {
	case evt.Role == workflow.RoleReviewer:
		other = doc.ApprovedByID
	case evt.Role == workflow.RoleApprover:
		other = doc.ReviewedByID
	case evt.Name == string(workflow.TransitionSubmit):
		other = doc.ReviewedByID
	}
	if other == doc.PreparedByID || other == evt.Actor.ID {
		return 0
	}
	return other
}

// Message renders the notification text for a transition.
func Message(evt procurement.TransitionEvent) string {
	doc := evt.Document
	who := evt.Actor.Name
	if who == "" {
		who = fmt.Sprintf("user #%d", evt.Actor.ID)
	}
	switch evt.Role {
	case workflow.RoleReviewer, workflow.RoleApprover:
		return fmt.Sprintf("%s %s: %s by %s (%s), status %s",
			doc.Type.Label(), doc.Number, pastTense(evt.Name), who, roleName(evt.Role), doc.Status)
	}
	return fmt.Sprintf("%s %s moved from %s to %s by %s", doc.Type.Label(), doc.Number, evt.From.Status, doc.Status, who)
}

// Payload is the broadcast body.
func Payload(evt procurement.TransitionEvent) map[string]any {
	doc := evt.Document
	return map[string]any{
		"id":             doc.ID.String(),
		"type":           string(doc.Type),
		"number":         doc.Number,
		"status":         string(doc.Status),
		"reviewerStatus": string(doc.ReviewerStatus),
		"approverStatus": string(doc.ApproverStatus),
		"action":         evt.Name,
	}
}

func pastTense(name string) string {
	switch workflow.Action(name) {
	case workflow.ActionApprove:
		return "approved"
	case workflow.ActionReject:
		return "rejected"
	}
	return name
}

func roleName(r workflow.Role) string {
	if r == workflow.RoleReviewer {
		return "reviewer"
	}
	return "approver"
}
