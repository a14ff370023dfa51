package shared

// Platform capabilities that are not tied to a document type.
const (
	CapAuditView Capability = "VIEW_AUDIT"
	CapJobsView  Capability = "VIEW_JOBS"
	CapRolesView Capability = "VIEW_ROLES"
)

// CoreScopes lists the platform capabilities.
func CoreScopes() []Capability {
	return []Capability{CapAuditView, CapJobsView, CapRolesView}
}
