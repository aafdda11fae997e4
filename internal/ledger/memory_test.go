package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t string) SlotKey {
	return SlotKey{
		DoctorID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Date:     "2025-03-03",
		Time:     t,
	}
}

func testRef() Ref {
	return Ref{AppointmentID: uuid.New(), TenantID: uuid.New()}
}

func TestMemory_TryClaim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := testKey("09:00")
	ref := testRef()

	require.NoError(t, m.TryClaim(ctx, key, ref))

	err := m.TryClaim(ctx, key, testRef())
	assert.ErrorIs(t, err, ErrSlotTaken)

	claim, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, ref.AppointmentID, claim.AppointmentID)
	assert.Equal(t, ref.TenantID, claim.TenantID)
}

// Core exclusivity property: many concurrent claims on one key, exactly
// one winner.
func TestMemory_ConcurrentTryClaim_SingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := testKey("10:00")

	const contenders = 100

	var wg sync.WaitGroup
	results := make([]error, contenders)
	refs := make([]Ref, contenders)

	for i := 0; i < contenders; i++ {
		refs[i] = testRef()
	}

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.TryClaim(ctx, key, refs[i])
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner Ref
	for i, err := range results {
		if err == nil {
			winners++
			winner = refs[i]
		} else {
			assert.ErrorIs(t, err, ErrSlotTaken)
		}
	}
	require.Equal(t, 1, winners)

	claim, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, winner.AppointmentID, claim.AppointmentID)
}

func TestMemory_MoveClaim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	oldKey, newKey := testKey("09:00"), testKey("09:30")
	ref := testRef()

	require.NoError(t, m.TryClaim(ctx, oldKey, ref))
	require.NoError(t, m.MoveClaim(ctx, oldKey, newKey, ref))

	freed, err := m.Get(ctx, oldKey)
	require.NoError(t, err)
	assert.Nil(t, freed)

	claim, err := m.Get(ctx, newKey)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, ref.AppointmentID, claim.AppointmentID)
}

// On conflict a move changes nothing: the old claim survives intact.
func TestMemory_MoveClaim_ConflictLeavesStateUnchanged(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	oldKey, newKey := testKey("09:00"), testKey("09:30")
	ref, other := testRef(), testRef()

	require.NoError(t, m.TryClaim(ctx, oldKey, ref))
	require.NoError(t, m.TryClaim(ctx, newKey, other))

	err := m.MoveClaim(ctx, oldKey, newKey, ref)
	assert.ErrorIs(t, err, ErrSlotTaken)

	oldClaim, err := m.Get(ctx, oldKey)
	require.NoError(t, err)
	require.NotNil(t, oldClaim)
	assert.Equal(t, ref.AppointmentID, oldClaim.AppointmentID)

	newClaim, err := m.Get(ctx, newKey)
	require.NoError(t, err)
	require.NotNil(t, newClaim)
	assert.Equal(t, other.AppointmentID, newClaim.AppointmentID)
}

func TestMemory_Release(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := testKey("11:00")
	ref := testRef()

	require.NoError(t, m.TryClaim(ctx, key, ref))

	// Releasing with the wrong owner is a no-op.
	require.NoError(t, m.Release(ctx, key, testRef()))
	claim, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, claim)

	require.NoError(t, m.Release(ctx, key, ref))
	claim, err = m.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, claim)

	// Releasing a free key is a no-op too.
	require.NoError(t, m.Release(ctx, key, ref))
}

func TestSlotKeyString(t *testing.T) {
	key := testKey("09:15")
	assert.Equal(t, "11111111-1111-1111-1111-111111111111:2025-03-03:09:15", key.String())
}
