package shared

// Procurement capability verbs. A capability is the verb joined with the
// document type code, e.g. "REVIEW_IOM" or "ORDER_PO".
const (
	VerbView     = "VIEW"
	VerbCreate   = "CREATE"
	VerbEdit     = "EDIT"
	VerbDelete   = "DELETE"
	VerbAssign   = "ASSIGN"
	VerbReview   = "REVIEW"
	VerbApprove  = "APPROVE"
	VerbReject   = "REJECT"
	VerbOrder    = "ORDER"
	VerbDeliver  = "DELIVER"
	VerbProcess  = "PROCESS"
	VerbCancel   = "CANCEL"
	VerbWithdraw = "WITHDRAW"
	VerbComplete = "COMPLETE"
)

// CapabilityFor joins a verb with a document type code.
func CapabilityFor(verb, docType string) Capability {
	return Capability(verb + "_" + docType)
}

// ProcurementScopes lists every capability for the given document type codes.
func ProcurementScopes(docTypes ...string) []Capability {
	verbs := []string{
		VerbView, VerbCreate, VerbEdit, VerbDelete, VerbAssign, VerbReview,
		VerbApprove, VerbReject, VerbCancel, VerbWithdraw,
	}
	var out []Capability
	for _, t := range docTypes {
		for _, v := range verbs {
			out = append(out, CapabilityFor(v, t))
		}
		switch t {
		case "PO":
			out = append(out, CapabilityFor(VerbOrder, t), CapabilityFor(VerbDeliver, t))
		case "PR", "CR":
			out = append(out, CapabilityFor(VerbProcess, t))
		case "IOM":
			out = append(out, CapabilityFor(VerbComplete, t))
		}
	}
	return append(out, CapAuditView, CapJobsView)
}
