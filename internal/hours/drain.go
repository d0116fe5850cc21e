package hours

import (
	"sort"
	"time"

	"github.com/atlas-collective/portal-backend/internal/models"
)

// draw records hours taken from one pack during a consumption.
type draw struct {
	Pack  *models.HourPack
	Hours int
}

// drainPacks picks the packs to deduct from, soonest-expiring-first with
// never-expiring packs last, so hours at risk of expiry are spent before
// hours that keep. Packs that are inactive, empty or already expired at now
// are skipped. Returns nil when the usable total cannot cover the request;
// nothing is mutated, callers apply the returned draws themselves.
func drainPacks(packs []*models.HourPack, request int, now time.Time) []draw {
	if request <= 0 {
		return []draw{}
	}

	usable := make([]*models.HourPack, 0, len(packs))
	for _, p := range packs {
		if p.Usable(now) {
			usable = append(usable, p)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i].ExpiresAt, usable[j].ExpiresAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})

	var draws []draw
	remaining := request
	for _, p := range usable {
		if remaining == 0 {
			break
		}
		take := p.HoursRemaining
		if take > remaining {
			take = remaining
		}
		draws = append(draws, draw{Pack: p, Hours: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil
	}
	return draws
}
