package models

import (
	"time"

	"github.com/google/uuid"
)

// HourPack is a consumable allocation of support hours attached to a plan.
// HoursRemaining only ever decreases once issued; a pack with zero remaining
// hours, or whose ExpiresAt has passed, is marked inactive. ExpiresAt is nil
// for packs that never expire (premier tier).
type HourPack struct {
	ID             uuid.UUID  `json:"id"`
	PlanID         uuid.UUID  `json:"plan_id"`
	Label          string     `json:"label"`
	HoursPurchased int        `json:"hours_purchased"`
	HoursRemaining int        `json:"hours_remaining"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Usable reports whether the pack can cover consumption at the given instant.
func (p *HourPack) Usable(now time.Time) bool {
	if !p.IsActive || p.HoursRemaining <= 0 {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
