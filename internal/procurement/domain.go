package procurement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// Document is a memo, purchase order, payment request or check request.
type Document struct {
	ID                  uuid.UUID
	Type                workflow.DocType
	Number              string
	Title               string
	Status              workflow.Status
	ReviewerStatus      workflow.SubStatus
	ApproverStatus      workflow.SubStatus
	PreparedByID        int64
	RequestedByID       int64
	ReviewedByID        int64
	ApprovedByID        int64
	AssignedDynamically bool
	// ParentID links a PO to its memo and a PR/CR to its PO.
	ParentID    *uuid.UUID
	Currency    string
	TotalAmount decimal.Decimal
	TaxAmount   decimal.Decimal
	GrandTotal  decimal.Decimal
	Notes       string
	Lines       []Line
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Line is a single document item.
type Line struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	LineNo      int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	// TaxRate is a percentage applied to the line amount.
	TaxRate   decimal.Decimal
	Amount    decimal.Decimal
	TaxAmount decimal.Decimal
}

// State extracts the approval state of the document.
func (d Document) State() workflow.State {
	return workflow.State{
		Type:                d.Type,
		Status:              d.Status,
		ReviewerStatus:      d.ReviewerStatus,
		ApproverStatus:      d.ApproverStatus,
		PreparedByID:        d.PreparedByID,
		ReviewedByID:        d.ReviewedByID,
		ApprovedByID:        d.ApprovedByID,
		AssignedDynamically: d.AssignedDynamically,
	}
}

// WithState returns a copy of the document carrying the given approval state.
func (d Document) WithState(st workflow.State) Document {
	d.Status = st.Status
	d.ReviewerStatus = st.ReviewerStatus
	d.ApproverStatus = st.ApproverStatus
	d.ReviewedByID = st.ReviewedByID
	d.ApprovedByID = st.ApprovedByID
	d.AssignedDynamically = st.AssignedDynamically
	return d
}

// Snapshot renders the document as a flat map used for audit payloads.
func (d Document) Snapshot() map[string]any {
	snap := map[string]any{
		"id":                  d.ID.String(),
		"type":                string(d.Type),
		"number":              d.Number,
		"title":               d.Title,
		"status":              string(d.Status),
		"reviewerStatus":      string(d.ReviewerStatus),
		"approverStatus":      string(d.ApproverStatus),
		"preparedById":        d.PreparedByID,
		"requestedById":       d.RequestedByID,
		"reviewedById":        d.ReviewedByID,
		"approvedById":        d.ApprovedByID,
		"assignedDynamically": d.AssignedDynamically,
		"currency":            d.Currency,
		"totalAmount":         d.TotalAmount.StringFixed(2),
		"taxAmount":           d.TaxAmount.StringFixed(2),
		"grandTotal":          d.GrandTotal.StringFixed(2),
		"notes":               d.Notes,
		"lines":               lineSnapshots(d.Lines),
	}
	if d.ParentID != nil {
		snap["parentId"] = d.ParentID.String()
	}
	return snap
}

// lineSnapshots uses the column scales so loaded and freshly built lines
// render identically.
func lineSnapshots(lines []Line) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{
			"lineNo":      l.LineNo,
			"description": l.Description,
			"quantity":    l.Quantity.StringFixed(4),
			"unitPrice":   l.UnitPrice.StringFixed(2),
			"taxRate":     l.TaxRate.StringFixed(4),
			"amount":      l.Amount.StringFixed(2),
			"taxAmount":   l.TaxAmount.StringFixed(2),
		})
	}
	return out
}

// ListFilters narrows document listings.
type ListFilters struct {
	Type    workflow.DocType
	Status  workflow.Status
	Search  string
	SortBy  string
	SortDir string
	Limit   int
	Offset  int
}

var (
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrNotFound indicates record missing.
	ErrNotFound = workflow.ErrNotFound
)
