// Package access computes and enforces the set of resources an authenticated
// principal may touch. Membership is established through independent,
// overlapping paths (direct organization membership, lead email match,
// per-project invitation); the resolver unions them and the gate checks them.
package access

import (
	"github.com/google/uuid"

	"github.com/atlas-collective/portal-backend/internal/models"
)

// Identity is the authenticated principal as supplied by the auth layer.
// The access core trusts it without re-verification.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// GrantVia tags which relationship path produced a grant.
type GrantVia string

const (
	GrantViaMembership GrantVia = "organization_membership"
	GrantViaLead       GrantVia = "lead_email"
	GrantViaInvite     GrantVia = "project_invite"
)

// Grant records one reason the principal may access something, preserving
// provenance for audit logging.
type Grant struct {
	Via            GrantVia   `json:"via"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	ProjectID      *uuid.UUID `json:"project_id,omitempty"`
}

// Context is the request-scoped result of access resolution. It is computed
// fresh per request and never cached across requests, so membership changes
// take effect on the next request at the latest.
type Context struct {
	OrganizationIDs map[uuid.UUID]struct{}
	// ProjectIDs holds projects reachable without organization membership:
	// converted leads matched by email plus explicit invitations.
	ProjectIDs map[uuid.UUID]struct{}
	Grants     []Grant
}

// NewContext returns an empty access context.
func NewContext() *Context {
	return &Context{
		OrganizationIDs: make(map[uuid.UUID]struct{}),
		ProjectIDs:      make(map[uuid.UUID]struct{}),
	}
}

// HasOrganization reports whether the principal belongs to the organization.
func (c *Context) HasOrganization(id uuid.UUID) bool {
	_, ok := c.OrganizationIDs[id]
	return ok
}

// HasProject reports whether the principal has direct (lead or invite) access
// to the project, independent of any organization.
func (c *Context) HasProject(id uuid.UUID) bool {
	_, ok := c.ProjectIDs[id]
	return ok
}

// Allows reports whether the context authorizes the project through either
// path: owning-organization membership OR direct project access. Both checks
// are required; checking only one silently denies legitimate access, and a
// looser match would grant access across tenants.
func (c *Context) Allows(p *models.Project) bool {
	if p == nil {
		return false
	}
	if p.OrganizationID != nil && c.HasOrganization(*p.OrganizationID) {
		return true
	}
	return c.HasProject(p.ID)
}

// Empty reports whether the principal has no accessible resources at all.
// This is a valid terminal state, not an error.
func (c *Context) Empty() bool {
	return len(c.OrganizationIDs) == 0 && len(c.ProjectIDs) == 0
}
