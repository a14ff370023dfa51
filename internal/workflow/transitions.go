package workflow

import "github.com/odyssey-erp/procureflow/internal/shared"

// Transition names a lifecycle move outside the reviewer/approver decision.
type Transition string

const (
	TransitionSubmit   Transition = "SUBMIT"
	TransitionOrder    Transition = "ORDER"
	TransitionDeliver  Transition = "DELIVER"
	TransitionProcess  Transition = "PROCESS"
	TransitionCancel   Transition = "CANCEL"
	TransitionWithdraw Transition = "WITHDRAW"
	TransitionComplete Transition = "COMPLETE"
)

// Rule describes a single legal transition for a document type.
type Rule struct {
	From []Status
	To   Status
	// Verb is joined with the document type to form the required capability.
	Verb string
	// PreparerOnly restricts the transition to the document preparer.
	PreparerOnly bool
	// ResetApproval puts both sub-statuses back to PENDING.
	ResetApproval bool
}

func (r Rule) allows(from Status) bool {
	for _, s := range r.From {
		if s == from {
			return true
		}
	}
	return false
}

// TransitionTable maps document types to their legal transitions.
type TransitionTable map[DocType]map[Transition]Rule

// Lookup returns the rule for a transition of a document type.
func (t TransitionTable) Lookup(docType DocType, name Transition) (Rule, bool) {
	rules, ok := t[docType]
	if !ok {
		return Rule{}, false
	}
	rule, ok := rules[name]
	return rule, ok
}

// Clone returns a deep copy so callers may adjust rules without touching the defaults.
func (t TransitionTable) Clone() TransitionTable {
	out := make(TransitionTable, len(t))
	for docType, rules := range t {
		copied := make(map[Transition]Rule, len(rules))
		for name, rule := range rules {
			rule.From = append([]Status(nil), rule.From...)
			copied[name] = rule
		}
		out[docType] = copied
	}
	return out
}

// DefaultTransitions returns the stock transition table.
func DefaultTransitions() TransitionTable {
	submit := Rule{From: []Status{StatusDraft}, To: StatusPendingApproval, Verb: shared.VerbCreate, PreparerOnly: true}
	withdraw := Rule{From: []Status{StatusPendingApproval}, To: StatusDraft, Verb: shared.VerbWithdraw, ResetApproval: true}
	cancel := Rule{From: []Status{StatusDraft, StatusPendingApproval, StatusApproved}, To: StatusCancelled, Verb: shared.VerbCancel}
	process := Rule{From: []Status{StatusApproved}, To: StatusProcessed, Verb: shared.VerbProcess}

	return TransitionTable{
		DocMemo: {
			TransitionSubmit:   submit,
			TransitionWithdraw: withdraw,
			TransitionCancel:   cancel,
			TransitionComplete: {From: []Status{StatusPendingApproval, StatusApproved}, To: StatusCompleted, Verb: shared.VerbComplete},
		},
		DocPurchaseOrder: {
			TransitionSubmit:   submit,
			TransitionWithdraw: withdraw,
			TransitionCancel:   {From: []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusOrdered}, To: StatusCancelled, Verb: shared.VerbCancel},
			TransitionOrder:    {From: []Status{StatusApproved}, To: StatusOrdered, Verb: shared.VerbOrder},
			TransitionDeliver:  {From: []Status{StatusOrdered}, To: StatusDelivered, Verb: shared.VerbDeliver},
		},
		DocPaymentRequest: {
			TransitionSubmit:   submit,
			TransitionWithdraw: withdraw,
			TransitionCancel:   cancel,
			TransitionProcess:  process,
		},
		DocCheckRequest: {
			TransitionSubmit:   submit,
			TransitionWithdraw: withdraw,
			TransitionCancel:   cancel,
			TransitionProcess:  process,
		},
	}
}
