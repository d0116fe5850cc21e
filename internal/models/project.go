package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a client engagement. OrganizationID is nullable: a project
// created from a lead may exist before its organization does, reachable only
// through the originating lead's email match.
type Project struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ProjectInvite grants a single user ad-hoc access to one project,
// independent of organization membership.
type ProjectInvite struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
