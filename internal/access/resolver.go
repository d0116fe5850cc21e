package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store is the persistence surface the resolver needs. Each method is a pure
// query; store failures propagate as infrastructure errors.
type Store interface {
	// OrganizationIDsForUser returns organizations the user is a member of.
	OrganizationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// LeadProjectIDsForEmail returns project IDs of converted leads whose
	// email matches (both sides lower-cased).
	LeadProjectIDsForEmail(ctx context.Context, email string) ([]uuid.UUID, error)
	// InvitedProjectIDsForUser returns projects the user was explicitly invited to.
	InvitedProjectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Resolver computes an access Context for an identity.
type Resolver struct {
	store Store
}

// NewResolver creates an access resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the union of all membership paths for the identity. An
// identity with no memberships, no matching leads, and no invites resolves to
// empty sets; that is a valid result, never an error.
func (r *Resolver) Resolve(ctx context.Context, identity Identity) (*Context, error) {
	out := NewContext()

	orgIDs, err := r.store.OrganizationIDsForUser(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve organization memberships: %w", err)
	}
	for _, id := range orgIDs {
		if _, seen := out.OrganizationIDs[id]; seen {
			continue
		}
		out.OrganizationIDs[id] = struct{}{}
		orgID := id
		out.Grants = append(out.Grants, Grant{Via: GrantViaMembership, OrganizationID: &orgID})
	}

	if email := strings.ToLower(strings.TrimSpace(identity.Email)); email != "" {
		projectIDs, err := r.store.LeadProjectIDsForEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("resolve lead projects: %w", err)
		}
		for _, id := range projectIDs {
			if _, seen := out.ProjectIDs[id]; seen {
				continue
			}
			out.ProjectIDs[id] = struct{}{}
			projectID := id
			out.Grants = append(out.Grants, Grant{Via: GrantViaLead, ProjectID: &projectID})
		}
	}

	invitedIDs, err := r.store.InvitedProjectIDsForUser(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve project invites: %w", err)
	}
	for _, id := range invitedIDs {
		if _, seen := out.ProjectIDs[id]; seen {
			continue
		}
		out.ProjectIDs[id] = struct{}{}
		projectID := id
		out.Grants = append(out.Grants, Grant{Via: GrantViaInvite, ProjectID: &projectID})
	}

	return out, nil
}
