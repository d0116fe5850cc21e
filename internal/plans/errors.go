package plans

import "errors"

var (
	// ErrInvalidTransition is returned when a plan state change is not
	// permitted from the plan's current status.
	ErrInvalidTransition = errors.New("invalid plan transition")

	// ErrPlanAlreadyActive is returned when a project already has a live
	// (active or paused) plan.
	ErrPlanAlreadyActive = errors.New("project already has a live plan")

	// ErrUnknownTier is returned for tier names missing from the registry.
	ErrUnknownTier = errors.New("unknown plan tier")

	// ErrPlanNotFound is returned when no plan exists for the given ID.
	ErrPlanNotFound = errors.New("plan not found")
)
