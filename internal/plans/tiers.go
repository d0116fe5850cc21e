package plans

// Tier names.
const (
	TierStarter  = "starter"
	TierGrowth   = "growth"
	TierDirector = "director"
	TierPremier  = "premier"
)

// Historical schema defaults. New rows must never keep these values unless
// the tier genuinely configures them; BackfillTierDefaults repairs rows that
// were created before tier derivation was enforced.
const (
	genericSupportHours   = 4
	genericChangeRequests = 3
)

// Tier defines what a maintenance-plan tier includes. The registry below is
// the single source of truth; plan creation and tier changes always derive
// the included fields from it, never from schema defaults.
type Tier struct {
	Name           string `json:"name"`
	SupportHours   int    `json:"support_hours"`
	ChangeRequests int    `json:"change_requests"`
	// PackTTLDays is the expiration window for hour packs purchased on
	// this tier, fixed at issuance. 0 means packs never expire.
	PackTTLDays int `json:"pack_ttl_days"`
}

var tierRegistry = map[string]Tier{
	TierStarter:  {Name: TierStarter, SupportHours: 2, ChangeRequests: 2, PackTTLDays: 60},
	TierGrowth:   {Name: TierGrowth, SupportHours: 6, ChangeRequests: 5, PackTTLDays: 90},
	TierDirector: {Name: TierDirector, SupportHours: 12, ChangeRequests: 8, PackTTLDays: 120},
	TierPremier:  {Name: TierPremier, SupportHours: 24, ChangeRequests: 15, PackTTLDays: 0},
}

// TierByName resolves a tier definition. ok is false for unknown tiers;
// callers must reject rather than fall back to generic values.
func TierByName(name string) (Tier, bool) {
	t, ok := tierRegistry[name]
	return t, ok
}

// Tiers returns all tier definitions, for the pricing endpoint.
func Tiers() []Tier {
	return []Tier{
		tierRegistry[TierStarter],
		tierRegistry[TierGrowth],
		tierRegistry[TierDirector],
		tierRegistry[TierPremier],
	}
}
