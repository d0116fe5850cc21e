package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atlas-collective/portal-backend/internal/models"
)

// ErrDenied means the principal has no authorized path to the resource, or
// the resource does not exist. The two are deliberately indistinguishable so
// callers cannot probe for another tenant's resources.
var ErrDenied = errors.New("access denied")

// ProjectStore loads projects for authorization. Returns (nil, nil) when the
// project does not exist.
type ProjectStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Gate is the single shared authorization routine for project-scoped
// resources. Endpoints must go through it rather than re-checking membership
// ad hoc.
type Gate struct {
	projects ProjectStore
}

// NewGate creates an access gate.
func NewGate(projects ProjectStore) *Gate {
	return &Gate{projects: projects}
}

// Authorize returns the project if the context grants access through either
// path, and ErrDenied otherwise (including when the project does not exist).
func (g *Gate) Authorize(ctx context.Context, actx *Context, projectID uuid.UUID) (*models.Project, error) {
	if actx == nil {
		return nil, ErrDenied
	}
	project, err := g.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil || !actx.Allows(project) {
		return nil, ErrDenied
	}
	return project, nil
}
