package hours

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-collective/portal-backend/internal/models"
)

func pack(hours int, expiresIn time.Duration, now time.Time) *models.HourPack {
	p := &models.HourPack{
		ID:             uuid.New(),
		HoursPurchased: hours,
		HoursRemaining: hours,
		IsActive:       true,
	}
	if expiresIn != 0 {
		at := now.Add(expiresIn)
		p.ExpiresAt = &at
	}
	return p
}

func TestDrainSoonestExpiringFirst(t *testing.T) {
	now := time.Now()
	expiring := pack(2, 10*24*time.Hour, now)
	forever := pack(5, 0, now)

	draws := drainPacks([]*models.HourPack{forever, expiring}, 3, now)
	require.Len(t, draws, 2)

	// 2 hours come out of the expiring pack, the 1 remaining out of the
	// non-expiring one, leaving balances {0, 4}.
	assert.Equal(t, expiring.ID, draws[0].Pack.ID)
	assert.Equal(t, 2, draws[0].Hours)
	assert.Equal(t, forever.ID, draws[1].Pack.ID)
	assert.Equal(t, 1, draws[1].Hours)
}

func TestDrainInsufficient(t *testing.T) {
	now := time.Now()
	packs := []*models.HourPack{pack(2, 24*time.Hour, now), pack(1, 0, now)}
	assert.Nil(t, drainPacks(packs, 4, now))
	// Nothing was mutated by the failed attempt.
	assert.Equal(t, 2, packs[0].HoursRemaining)
	assert.Equal(t, 1, packs[1].HoursRemaining)
}

func TestDrainSkipsUnusablePacks(t *testing.T) {
	now := time.Now()
	expired := pack(10, -time.Hour, now)
	inactive := pack(10, 24*time.Hour, now)
	inactive.IsActive = false
	empty := pack(3, 24*time.Hour, now)
	empty.HoursRemaining = 0
	good := pack(2, 24*time.Hour, now)

	draws := drainPacks([]*models.HourPack{expired, inactive, empty, good}, 2, now)
	require.Len(t, draws, 1)
	assert.Equal(t, good.ID, draws[0].Pack.ID)

	// Only the good pack is usable, so asking past it fails.
	assert.Nil(t, drainPacks([]*models.HourPack{expired, inactive, empty, good}, 3, now))
}

func TestDrainOrdersByExpiry(t *testing.T) {
	now := time.Now()
	late := pack(4, 90*24*time.Hour, now)
	soon := pack(4, 7*24*time.Hour, now)
	mid := pack(4, 30*24*time.Hour, now)
	never := pack(4, 0, now)

	draws := drainPacks([]*models.HourPack{late, never, soon, mid}, 16, now)
	require.Len(t, draws, 4)
	assert.Equal(t, soon.ID, draws[0].Pack.ID)
	assert.Equal(t, mid.ID, draws[1].Pack.ID)
	assert.Equal(t, late.ID, draws[2].Pack.ID)
	assert.Equal(t, never.ID, draws[3].Pack.ID)
}

func TestDrainZeroAndNegativeRequests(t *testing.T) {
	now := time.Now()
	packs := []*models.HourPack{pack(2, 0, now)}
	assert.Empty(t, drainPacks(packs, 0, now))
	assert.Empty(t, drainPacks(packs, -1, now))
}
