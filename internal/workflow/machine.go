package workflow

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// Action is a reviewer or approver decision.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// Valid reports whether a is a known decision.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

func (a Action) subStatus() SubStatus {
	if a == ActionApprove {
		return SubApproved
	}
	return SubRejected
}

// Role is the part an actor plays on a document.
type Role string

const (
	RoleNone     Role = ""
	RoleReviewer Role = "REVIEWER"
	RoleApprover Role = "APPROVER"
)

// Authorizer is the capability gate consulted before privileged moves.
// Any returned error is treated as a denial.
type Authorizer interface {
	Authorize(ctx context.Context, actor shared.Actor, capability shared.Capability) error
}

// State is the approval-relevant slice of a document.
type State struct {
	Type                DocType
	Status              Status
	ReviewerStatus      SubStatus
	ApproverStatus      SubStatus
	PreparedByID        int64
	ReviewedByID        int64
	ApprovedByID        int64
	AssignedDynamically bool
}

// Outcome describes a computed, not yet persisted, state change.
type Outcome struct {
	From State
	To   State
	Role Role
	// Name is the decision or transition applied, e.g. "APPROVE" or "ORDER".
	Name string
}

// Machine evaluates decisions and transitions. It never persists anything.
type Machine struct {
	authz       Authorizer
	transitions TransitionTable
}

// NewMachine constructs a Machine. A nil table selects DefaultTransitions.
func NewMachine(authz Authorizer, table TransitionTable) *Machine {
	if table == nil {
		table = DefaultTransitions()
	}
	return &Machine{authz: authz, transitions: table}
}

// Transitions exposes the configured transition table.
func (m *Machine) Transitions() TransitionTable {
	return m.transitions
}

// Require verifies that the actor is authenticated and holds the capability.
func (m *Machine) Require(ctx context.Context, actor shared.Actor, capability shared.Capability) error {
	if !actor.Authenticated() {
		return ErrNotAuthenticated
	}
	if m.authz == nil {
		return fmt.Errorf("%w: authorization gate not configured", ErrNotAuthorized)
	}
	if err := m.authz.Authorize(ctx, actor, capability); err != nil {
		return fmt.Errorf("%w: %s requires %s", ErrNotAuthorized, actor.Name, capability)
	}
	return nil
}

// RoleOf returns the designated role the actor holds on the document.
// When the same user is both reviewer and approver, the reviewer role is
// returned until the reviewer decision is recorded.
func RoleOf(st State, actorID int64) Role {
	isReviewer := st.ReviewedByID != 0 && st.ReviewedByID == actorID
	isApprover := st.ApprovedByID != 0 && st.ApprovedByID == actorID
	switch {
	case isReviewer && isApprover:
		if st.ReviewerStatus == SubPending {
			return RoleReviewer
		}
		return RoleApprover
	case isReviewer:
		return RoleReviewer
	case isApprover:
		return RoleApprover
	}
	return RoleNone
}

// Act applies a reviewer or approver decision and derives the new overall status.
func (m *Machine) Act(ctx context.Context, st State, actor shared.Actor, action Action) (Outcome, error) {
	if !actor.Authenticated() {
		return Outcome{}, ErrNotAuthenticated
	}
	if !action.Valid() {
		return Outcome{}, invalidTransition("unknown action %q", action)
	}
	role := RoleOf(st, actor.ID)
	if role == RoleNone {
		return Outcome{}, fmt.Errorf("%w: %s is not the designated reviewer or approver", ErrNotAuthorized, actor.Name)
	}
	if err := m.Require(ctx, actor, decisionCapability(st.Type, role, action)); err != nil {
		return Outcome{}, err
	}
	if st.Status != StatusPendingApproval {
		return Outcome{}, invalidTransition("%s is %s, decisions require %s", st.Type.Label(), st.Status, StatusPendingApproval)
	}

	next := st
	switch role {
	case RoleReviewer:
		if st.ReviewerStatus != SubPending {
			return Outcome{}, invalidTransition("reviewer already recorded %s", st.ReviewerStatus)
		}
		next.ReviewerStatus = action.subStatus()
	case RoleApprover:
		if st.ApproverStatus != SubPending {
			return Outcome{}, invalidTransition("approver already recorded %s", st.ApproverStatus)
		}
		next.ApproverStatus = action.subStatus()
	}
	next.Status = Derive(next.ReviewerStatus, next.ApproverStatus)
	return Outcome{From: st, To: next, Role: role, Name: string(action)}, nil
}

// Apply performs a table driven transition such as ORDER or WITHDRAW.
func (m *Machine) Apply(ctx context.Context, st State, actor shared.Actor, name Transition) (Outcome, error) {
	if !actor.Authenticated() {
		return Outcome{}, ErrNotAuthenticated
	}
	rule, ok := m.transitions.Lookup(st.Type, name)
	if !ok {
		return Outcome{}, invalidTransition("%s is not available for %s", name, st.Type.Label())
	}
	if rule.PreparerOnly && st.PreparedByID != actor.ID {
		return Outcome{}, fmt.Errorf("%w: only the preparer may %s", ErrNotAuthorized, name)
	}
	if err := m.Require(ctx, actor, shared.CapabilityFor(rule.Verb, string(st.Type))); err != nil {
		return Outcome{}, err
	}
	if !rule.allows(st.Status) {
		return Outcome{}, invalidTransition("cannot %s a %s in status %s", name, st.Type.Label(), st.Status)
	}

	next := st
	next.Status = rule.To
	if rule.ResetApproval {
		next.ReviewerStatus = SubPending
		next.ApproverStatus = SubPending
		if st.AssignedDynamically {
			next.ReviewedByID = 0
			next.ApprovedByID = 0
			next.AssignedDynamically = false
		}
	}
	return Outcome{From: st, To: next, Role: RoleNone, Name: string(name)}, nil
}

// Assign designates the reviewer and approver on a document that has none.
func (m *Machine) Assign(ctx context.Context, st State, actor shared.Actor, reviewerID, approverID int64) (Outcome, error) {
	if err := m.Require(ctx, actor, shared.CapabilityFor(shared.VerbAssign, string(st.Type))); err != nil {
		return Outcome{}, err
	}
	if st.Status != StatusDraft && st.Status != StatusPendingApproval {
		return Outcome{}, invalidTransition("cannot assign parties to a %s in status %s", st.Type.Label(), st.Status)
	}
	if st.ReviewerStatus != SubPending || st.ApproverStatus != SubPending {
		return Outcome{}, invalidTransition("decisions already recorded")
	}
	if reviewerID <= 0 || approverID <= 0 {
		return Outcome{}, invalidTransition("reviewer and approver are required")
	}
	next := st
	next.ReviewedByID = reviewerID
	next.ApprovedByID = approverID
	next.AssignedDynamically = true
	return Outcome{From: st, To: next, Role: RoleNone, Name: "ASSIGN"}, nil
}

func decisionCapability(docType DocType, role Role, action Action) shared.Capability {
	if role == RoleReviewer {
		return shared.CapabilityFor(shared.VerbReview, string(docType))
	}
	if action == ActionReject {
		return shared.CapabilityFor(shared.VerbReject, string(docType))
	}
	return shared.CapabilityFor(shared.VerbApprove, string(docType))
}
