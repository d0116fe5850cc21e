package hours

import "errors"

var (
	// ErrInsufficientHours is returned when no combination of usable packs
	// covers a consumption request. Nothing is deducted in that case.
	ErrInsufficientHours = errors.New("insufficient hours")

	// ErrPlanNotLive is returned when issuing or consuming against a plan
	// that is not active or paused.
	ErrPlanNotLive = errors.New("plan is not live")
)
