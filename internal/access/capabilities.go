package access

import "github.com/atlas-collective/portal-backend/internal/models"

// Capability names one action class a principal may perform. Endpoint
// dispatch checks capability membership instead of comparing role strings at
// every call site.
type Capability string

const (
	CapManagePlatform Capability = "manage_platform"
	CapManageLeads    Capability = "manage_leads"
	CapManageBilling  Capability = "manage_billing"
	CapViewReports    Capability = "view_reports"
)

var roleCapabilities = map[string][]Capability{
	models.RoleAdmin:  {CapManagePlatform, CapManageLeads, CapManageBilling, CapViewReports},
	models.RoleClient: {CapManageBilling, CapViewReports},
}

// CapabilitiesForRole resolves a platform role to its capability set.
// Unknown roles resolve to no capabilities.
func CapabilitiesForRole(role string) map[Capability]struct{} {
	out := make(map[Capability]struct{})
	for _, cap := range roleCapabilities[role] {
		out[cap] = struct{}{}
	}
	return out
}

// RoleHas reports whether the role's capability set includes cap.
func RoleHas(role string, cap Capability) bool {
	_, ok := CapabilitiesForRole(role)[cap]
	return ok
}
