// Package workflow holds the approval state machine shared by every
// procurement document type: status enums, status derivation, transition
// tables, sequential numbering and the optimistic creation loop.
package workflow

// DocType identifies a procurement document kind.
type DocType string

const (
	DocMemo           DocType = "IOM"
	DocPurchaseOrder  DocType = "PO"
	DocPaymentRequest DocType = "PR"
	DocCheckRequest   DocType = "CR"
)

// DocTypes lists every supported document type.
func DocTypes() []DocType {
	return []DocType{DocMemo, DocPurchaseOrder, DocPaymentRequest, DocCheckRequest}
}

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	switch t {
	case DocMemo, DocPurchaseOrder, DocPaymentRequest, DocCheckRequest:
		return true
	}
	return false
}

// Prefix returns the number prefix for the type.
func (t DocType) Prefix() string {
	return string(t)
}

// Label returns the human readable name of the type.
func (t DocType) Label() string {
	switch t {
	case DocMemo:
		return "Inter-Office Memo"
	case DocPurchaseOrder:
		return "Purchase Order"
	case DocPaymentRequest:
		return "Payment Request"
	case DocCheckRequest:
		return "Check Request"
	}
	return string(t)
}

// ParentType returns the document type a dependent document is drawn against.
func (t DocType) ParentType() (DocType, bool) {
	switch t {
	case DocPurchaseOrder:
		return DocMemo, true
	case DocPaymentRequest, DocCheckRequest:
		return DocPurchaseOrder, true
	}
	return "", false
}

// SubStatus is the independent reviewer/approver decision.
type SubStatus string

const (
	SubPending  SubStatus = "PENDING"
	SubApproved SubStatus = "APPROVED"
	SubRejected SubStatus = "REJECTED"
)

// Valid reports whether s is a known sub-status.
func (s SubStatus) Valid() bool {
	switch s {
	case SubPending, SubApproved, SubRejected:
		return true
	}
	return false
}

// Status is the overall lifecycle status of a document.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusOrdered         Status = "ORDERED"
	StatusDelivered       Status = "DELIVERED"
	StatusProcessed       Status = "PROCESSED"
	StatusCancelled       Status = "CANCELLED"
	StatusCompleted       Status = "COMPLETED"
)

var statusesByType = map[DocType][]Status{
	DocMemo:           {StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled},
	DocPurchaseOrder:  {StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusOrdered, StatusDelivered, StatusCancelled},
	DocPaymentRequest: {StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusProcessed, StatusCancelled},
	DocCheckRequest:   {StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusProcessed, StatusCancelled},
}

// Statuses returns the closed status set of a document type.
func (t DocType) Statuses() []Status {
	return append([]Status(nil), statusesByType[t]...)
}

// Allows reports whether status belongs to the status set of t.
func (t DocType) Allows(status Status) bool {
	for _, s := range statusesByType[t] {
		if s == status {
			return true
		}
	}
	return false
}

// Derive computes the overall status from the reviewer and approver
// sub-statuses. The approver decision wins over the reviewer decision.
func Derive(reviewer, approver SubStatus) Status {
	switch approver {
	case SubApproved:
		return StatusApproved
	case SubRejected:
		return StatusRejected
	}
	if reviewer == SubRejected {
		return StatusRejected
	}
	return StatusPendingApproval
}
