package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/procureflow/internal/audit"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CountCreated(ctx context.Context, docType workflow.DocType, from, to time.Time) (int, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	ListDocuments(ctx context.Context, filters ListFilters) ([]Document, int, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	// InsertDocument must fail with workflow.ErrUniqueViolation when the number is taken.
	InsertDocument(ctx context.Context, doc Document) error
	InsertLine(ctx context.Context, line Line) error
	DeleteLines(ctx context.Context, documentID uuid.UUID) error
	LockDocument(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateDraft(ctx context.Context, doc Document) error
	// UpdateState writes the sub-statuses, overall status and parties in one statement.
	UpdateState(ctx context.Context, id uuid.UUID, st workflow.State, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AuditPort records audit entries. Implementations swallow their own failures.
type AuditPort interface {
	Log(ctx context.Context, action audit.Action, entry audit.Entry)
}

// Service orchestrates document creation, approval and lifecycle flows.
type Service struct {
	repo    RepositoryPort
	machine *workflow.Machine
	creator *workflow.Creator
	audit   AuditPort
	events  EventDispatcher
	metrics TransitionRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, machine *workflow.Machine, creator *workflow.Creator, auditor AuditPort, events EventDispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = noopDispatcher{}
	}
	return &Service{
		repo:    repo,
		machine: machine,
		creator: creator,
		audit:   auditor,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// WithMetrics attaches a transition recorder.
func (s *Service) WithMetrics(m TransitionRecorder) *Service {
	s.metrics = m
	return s
}

// CreateInput describes creation payload.
type CreateInput struct {
	Type          workflow.DocType
	Title         string
	RequestedByID int64
	ReviewerID    int64
	ApproverID    int64
	ParentID      *uuid.UUID
	Currency      string
	// TaxAmount is a document level tax added to the per-line tax.
	TaxAmount decimal.Decimal
	Notes     string
	// Submit creates the document directly in PENDING_APPROVAL.
	Submit bool
	Lines  []LineInput
}

// UpdateInput describes a draft edit.
type UpdateInput struct {
	Title         string
	RequestedByID int64
	Currency      string
	TaxAmount     decimal.Decimal
	Notes         string
	Lines         []LineInput
}

// ListResult is a page of documents.
type ListResult struct {
	Documents  []Document
	Pagination shared.Pagination
}

// Create validates the request, enforces the parent total constraint and
// inserts the document under a freshly generated number.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Document, error) {
	if !input.Type.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document type %q", ErrValidation, input.Type)
	}
	if err := s.machine.Require(ctx, actor, shared.CapabilityFor(shared.VerbCreate, string(input.Type))); err != nil {
		return Document{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Document{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.ReviewerID < 0 || input.ApproverID < 0 {
		return Document{}, fmt.Errorf("%w: invalid reviewer or approver", ErrValidation)
	}
	lines, err := BuildLines(input.Lines)
	if err != nil {
		return Document{}, err
	}
	totals, err := ComputeTotals(lines, input.TaxAmount)
	if err != nil {
		return Document{}, err
	}
	if err := s.checkParent(ctx, input.Type, input.ParentID, totals.GrandTotal, true); err != nil {
		return Document{}, err
	}

	status := workflow.StatusDraft
	if input.Submit {
		status = workflow.StatusPendingApproval
	}
	requestedBy := input.RequestedByID
	if requestedBy == 0 {
		requestedBy = actor.ID
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "IDR"
	}
	draft := Document{
		Type:           input.Type,
		Title:          title,
		Status:         status,
		ReviewerStatus: workflow.SubPending,
		ApproverStatus: workflow.SubPending,
		PreparedByID:   actor.ID,
		RequestedByID:  requestedBy,
		ReviewedByID:   input.ReviewerID,
		ApprovedByID:   input.ApproverID,
		ParentID:       input.ParentID,
		Currency:       currency,
		TotalAmount:    totals.TotalAmount,
		TaxAmount:      totals.TaxAmount,
		GrandTotal:     totals.GrandTotal,
		Notes:          strings.TrimSpace(input.Notes),
	}

	created, err := workflow.Create(ctx, s.creator, input.Type, func(ctx context.Context, number string, createdAt time.Time) (Document, error) {
		doc := draft
		doc.ID = uuid.New()
		doc.Number = number
		doc.CreatedAt = createdAt.UTC()
		doc.UpdatedAt = doc.CreatedAt
		doc.Lines = withDocumentID(lines, doc.ID)
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.InsertDocument(ctx, doc); err != nil {
				return err
			}
			for _, line := range doc.Lines {
				if err := tx.InsertLine(ctx, line); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return Document{}, err
		}
		return doc, nil
	})
	if err != nil {
		return Document{}, err
	}

	s.recordAudit(ctx, audit.ActionCreate, actor, created, created.Snapshot())
	if created.Status == workflow.StatusPendingApproval {
		from := created.State()
		from.Status = workflow.StatusDraft
		s.events.Dispatch(ctx, TransitionEvent{
			Document: created,
			Actor:    actor,
			Name:     string(workflow.TransitionSubmit),
			From:     from,
		})
	}
	return created, nil
}

// Update replaces the editable fields and lines of a DRAFT document.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id uuid.UUID, input UpdateInput) (Document, error) {
	if !actor.Authenticated() {
		return Document{}, workflow.ErrNotAuthenticated
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Document{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	lines, err := BuildLines(input.Lines)
	if err != nil {
		return Document{}, err
	}
	totals, err := ComputeTotals(lines, input.TaxAmount)
	if err != nil {
		return Document{}, err
	}

	var before, after Document
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		if err := s.requirePreparerOr(ctx, actor, doc, shared.VerbEdit); err != nil {
			return err
		}
		if doc.Status != workflow.StatusDraft {
			return fmt.Errorf("%w: only DRAFT documents can be edited, %s is %s", workflow.ErrInvalidTransition, doc.Number, doc.Status)
		}
		if err := s.checkParent(ctx, doc.Type, doc.ParentID, totals.GrandTotal, false); err != nil {
			return err
		}
		before = doc
		after = doc
		after.Title = title
		after.Notes = strings.TrimSpace(input.Notes)
		if input.RequestedByID > 0 {
			after.RequestedByID = input.RequestedByID
		}
		if c := strings.ToUpper(strings.TrimSpace(input.Currency)); c != "" {
			after.Currency = c
		}
		after.TotalAmount = totals.TotalAmount
		after.TaxAmount = totals.TaxAmount
		after.GrandTotal = totals.GrandTotal
		after.Lines = withDocumentID(lines, doc.ID)
		after.UpdatedAt = s.now().UTC()

		if err := tx.UpdateDraft(ctx, after); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, doc.ID); err != nil {
			return err
		}
		for _, line := range after.Lines {
			if err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.recordAudit(ctx, audit.ActionUpdate, actor, after, audit.Diff(before.Snapshot(), after.Snapshot()))
	return after, nil
}

// Delete soft deletes a DRAFT document. Deleted documents keep their number
// reserved for the yearly sequence.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if !actor.Authenticated() {
		return workflow.ErrNotAuthenticated
	}
	var deleted Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		if err := s.requirePreparerOr(ctx, actor, doc, shared.VerbDelete); err != nil {
			return err
		}
		if doc.Status != workflow.StatusDraft {
			return fmt.Errorf("%w: only DRAFT documents can be deleted, %s is %s", workflow.ErrInvalidTransition, doc.Number, doc.Status)
		}
		deleted = doc
		return tx.SoftDelete(ctx, id, s.now().UTC())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, audit.ActionDelete, actor, deleted, deleted.Snapshot())
	return nil
}

// Act records an APPROVE or REJECT decision by the designated reviewer or approver.
func (s *Service) Act(ctx context.Context, actor shared.Actor, id uuid.UUID, action workflow.Action) (Document, error) {
	return s.applyOutcome(ctx, actor, id, string(action), func(ctx context.Context, st workflow.State) (workflow.Outcome, error) {
		return s.machine.Act(ctx, st, actor, action)
	})
}

// Transition applies a lifecycle transition such as SUBMIT, ORDER or WITHDRAW.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, id uuid.UUID, name workflow.Transition) (Document, error) {
	return s.applyOutcome(ctx, actor, id, string(name), func(ctx context.Context, st workflow.State) (workflow.Outcome, error) {
		return s.machine.Apply(ctx, st, actor, name)
	})
}

// Submit moves a DRAFT document into PENDING_APPROVAL.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, id uuid.UUID) (Document, error) {
	return s.Transition(ctx, actor, id, workflow.TransitionSubmit)
}

// Assign designates the reviewer and approver of a document.
func (s *Service) Assign(ctx context.Context, actor shared.Actor, id uuid.UUID, reviewerID, approverID int64) (Document, error) {
	return s.applyOutcome(ctx, actor, id, "ASSIGN", func(ctx context.Context, st workflow.State) (workflow.Outcome, error) {
		return s.machine.Assign(ctx, st, actor, reviewerID, approverID)
	})
}

// Get returns a document with its lines.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (Document, error) {
	if !actor.Authenticated() {
		return Document{}, workflow.ErrNotAuthenticated
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if err := s.machine.Require(ctx, actor, shared.CapabilityFor(shared.VerbView, string(doc.Type))); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// DocumentType reports the type of a document to an authenticated actor.
// It deliberately skips the VIEW capability: routing checks need the type
// before the actual operation applies its own authorization.
func (s *Service) DocumentType(ctx context.Context, actor shared.Actor, id uuid.UUID) (workflow.DocType, error) {
	if !actor.Authenticated() {
		return "", workflow.ErrNotAuthenticated
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Type, nil
}

// List returns a page of documents of a single type.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) (ListResult, error) {
	if !filters.Type.Valid() {
		return ListResult{}, fmt.Errorf("%w: unknown document type %q", ErrValidation, filters.Type)
	}
	if err := s.machine.Require(ctx, actor, shared.CapabilityFor(shared.VerbView, string(filters.Type))); err != nil {
		return ListResult{}, err
	}
	if filters.Status != "" && !filters.Type.Allows(filters.Status) {
		return ListResult{}, fmt.Errorf("%w: status %q is not used by %s", ErrValidation, filters.Status, filters.Type.Label())
	}
	filters.Offset, filters.Limit = shared.ClampWindow(filters.Offset, filters.Limit)
	docs, total, err := s.repo.ListDocuments(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Documents: docs, Pagination: shared.PaginationFromOffset(filters.Offset, filters.Limit, total)}, nil
}

type outcomeFunc func(ctx context.Context, st workflow.State) (workflow.Outcome, error)

// applyOutcome locks the document, evaluates the move and persists the new
// state with a single write. Audit and notifications run after commit.
func (s *Service) applyOutcome(ctx context.Context, actor shared.Actor, id uuid.UUID, name string, compute outcomeFunc) (Document, error) {
	if !actor.Authenticated() {
		return Document{}, workflow.ErrNotAuthenticated
	}
	var (
		updated Document
		outcome workflow.Outcome
		docType workflow.DocType
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		docType = doc.Type
		outcome, err = compute(ctx, doc.State())
		if err != nil {
			return err
		}
		if !doc.Type.Allows(outcome.To.Status) {
			return fmt.Errorf("%w: %s is not a %s status", workflow.ErrInvalidTransition, outcome.To.Status, doc.Type.Label())
		}
		now := s.now().UTC()
		if err := tx.UpdateState(ctx, doc.ID, outcome.To, now); err != nil {
			return err
		}
		updated = doc.WithState(outcome.To)
		updated.UpdatedAt = now
		return nil
	})
	if docType != "" {
		s.observe(docType, name, err)
	}
	if err != nil {
		return Document{}, err
	}

	s.recordAudit(ctx, audit.ActionStatusChange, actor, updated, audit.StatusChanges{
		From: statusSnapshot(outcome.From),
		To:   statusSnapshot(outcome.To),
	})
	s.events.Dispatch(ctx, TransitionEvent{
		Document: updated,
		Actor:    actor,
		Role:     outcome.Role,
		Name:     outcome.Name,
		From:     outcome.From,
	})
	return updated, nil
}

func (s *Service) checkParent(ctx context.Context, docType workflow.DocType, parentID *uuid.UUID, grandTotal decimal.Decimal, creating bool) error {
	parentType, hasParent := docType.ParentType()
	if parentID == nil {
		return nil
	}
	if !hasParent {
		return fmt.Errorf("%w: %s cannot reference a parent document", ErrValidation, docType.Label())
	}
	parent, err := s.repo.GetDocument(ctx, *parentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, parentType.Label(), parentID)
		}
		return err
	}
	if parent.Type != parentType {
		return fmt.Errorf("%w: %s must reference a %s", ErrValidation, docType.Label(), parentType.Label())
	}
	if creating && docType == workflow.DocPurchaseOrder && parent.Status != workflow.StatusApproved {
		return fmt.Errorf("%w: %s %s is %s, only APPROVED memos can be converted", workflow.ErrInvalidTransition, parentType.Label(), parent.Number, parent.Status)
	}
	if docType == workflow.DocPaymentRequest || docType == workflow.DocCheckRequest {
		return workflow.CheckParentTotal(docType, grandTotal, parentType, parent.GrandTotal)
	}
	return nil
}

func (s *Service) requirePreparerOr(ctx context.Context, actor shared.Actor, doc Document, verb string) error {
	if actor.ID == doc.PreparedByID {
		return nil
	}
	return s.machine.Require(ctx, actor, shared.CapabilityFor(verb, string(doc.Type)))
}

func (s *Service) recordAudit(ctx context.Context, action audit.Action, actor shared.Actor, doc Document, changes any) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, action, audit.Entry{
		Model:    string(doc.Type),
		RecordID: doc.ID.String(),
		UserID:   actor.ID,
		UserName: actor.Name,
		Changes:  changes,
	})
}

func (s *Service) observe(docType workflow.DocType, name string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveTransition(string(docType), name, outcomeLabel(err))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, workflow.ErrNotAuthenticated), errors.Is(err, workflow.ErrNotAuthorized):
		return "denied"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}

func statusSnapshot(st workflow.State) map[string]any {
	return map[string]any{
		"status":         string(st.Status),
		"reviewerStatus": string(st.ReviewerStatus),
		"approverStatus": string(st.ApproverStatus),
		"reviewedById":   st.ReviewedByID,
		"approvedById":   st.ApprovedByID,
	}
}

func withDocumentID(lines []Line, docID uuid.UUID) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		l.ID = uuid.New()
		l.DocumentID = docID
		out[i] = l
	}
	return out
}
