package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

type lineRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxRate     decimal.Decimal `json:"taxRate"`
}

type createRequest struct {
	Title         string          `json:"title" validate:"required,max=200"`
	RequestedByID int64           `json:"requestedById" validate:"gte=0"`
	ReviewerID    int64           `json:"reviewerId" validate:"gte=0"`
	ApproverID    int64           `json:"approverId" validate:"gte=0"`
	ParentID      string          `json:"parentId" validate:"omitempty,uuid"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	Notes         string          `json:"notes" validate:"max=2000"`
	Submit        bool            `json:"submit"`
	Lines         []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

type updateRequest struct {
	Title         string          `json:"title" validate:"required,max=200"`
	RequestedByID int64           `json:"requestedById" validate:"gte=0"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	Notes         string          `json:"notes" validate:"max=2000"`
	Lines         []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

type assignRequest struct {
	ReviewerID int64 `json:"reviewerId" validate:"required,gt=0"`
	ApproverID int64 `json:"approverId" validate:"required,gt=0"`
}

type actionRequest struct {
	Action string `json:"action" validate:"required,oneof=APPROVE REJECT"`
}

type transitionRequest struct {
	Transition string `json:"transition" validate:"required,oneof=SUBMIT ORDER DELIVER PROCESS CANCEL WITHDRAW COMPLETE"`
}

type lineResponse struct {
	ID          string `json:"id"`
	LineNo      int    `json:"lineNo"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TaxRate     string `json:"taxRate"`
	Amount      string `json:"amount"`
	TaxAmount   string `json:"taxAmount"`
}

type documentResponse struct {
	ID                  string         `json:"id"`
	Type                string         `json:"type"`
	Number              string         `json:"number"`
	Title               string         `json:"title"`
	Status              string         `json:"status"`
	ReviewerStatus      string         `json:"reviewerStatus"`
	ApproverStatus      string         `json:"approverStatus"`
	PreparedByID        int64          `json:"preparedById"`
	RequestedByID       int64          `json:"requestedById"`
	ReviewedByID        int64          `json:"reviewedById,omitempty"`
	ApprovedByID        int64          `json:"approvedById,omitempty"`
	AssignedDynamically bool           `json:"assignedDynamically"`
	ParentID            string         `json:"parentId,omitempty"`
	Currency            string         `json:"currency"`
	TotalAmount         string         `json:"totalAmount"`
	TaxAmount           string         `json:"taxAmount"`
	GrandTotal          string         `json:"grandTotal"`
	Notes               string         `json:"notes,omitempty"`
	Lines               []lineResponse `json:"lines,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

type listResponse struct {
	Items      []documentResponse `json:"items"`
	Page       int                `json:"page"`
	PerPage    int                `json:"perPage"`
	Total      int                `json:"total"`
	TotalPages int                `json:"totalPages"`
	HasNext    bool               `json:"hasNext"`
}

func toLineInputs(in []lineRequest) []LineInput {
	out := make([]LineInput, len(in))
	for i, l := range in {
		out[i] = LineInput{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice, TaxRate: l.TaxRate}
	}
	return out
}

func toResponse(doc Document) documentResponse {
	resp := documentResponse{
		ID:                  doc.ID.String(),
		Type:                string(doc.Type),
		Number:              doc.Number,
		Title:               doc.Title,
		Status:              string(doc.Status),
		ReviewerStatus:      string(doc.ReviewerStatus),
		ApproverStatus:      string(doc.ApproverStatus),
		PreparedByID:        doc.PreparedByID,
		RequestedByID:       doc.RequestedByID,
		ReviewedByID:        doc.ReviewedByID,
		ApprovedByID:        doc.ApprovedByID,
		AssignedDynamically: doc.AssignedDynamically,
		Currency:            doc.Currency,
		TotalAmount:         doc.TotalAmount.StringFixed(2),
		TaxAmount:           doc.TaxAmount.StringFixed(2),
		GrandTotal:          doc.GrandTotal.StringFixed(2),
		Notes:               doc.Notes,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
	if doc.ParentID != nil {
		resp.ParentID = doc.ParentID.String()
	}
	for _, l := range doc.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          l.ID.String(),
			LineNo:      l.LineNo,
			Description: l.Description,
			Quantity:    l.Quantity.String(),
			UnitPrice:   l.UnitPrice.StringFixed(2),
			TaxRate:     l.TaxRate.String(),
			Amount:      l.Amount.StringFixed(2),
			TaxAmount:   l.TaxAmount.StringFixed(2),
		})
	}
	return resp
}
