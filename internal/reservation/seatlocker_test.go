package reservation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/lockstore"
	"github.com/traffictacos/reservation-core/internal/reservation"
)

func TestSeatLocker_TryLock_ConflictsAcrossOwners(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, locker.TryLock(ctx, 1, "A1", "user-a", time.Minute))

	err := locker.TryLock(ctx, 1, "A1", "user-b", time.Minute)
	assert.ErrorIs(t, err, apperr.ErrSeatLocked)
}

func TestSeatLocker_TryLock_ReentrantForSameOwner(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, locker.TryLock(ctx, 1, "A1", "user-a", time.Minute))
	require.NoError(t, locker.TryLock(ctx, 1, "A1", "user-a", 5*time.Minute), "same owner may re-lock to extend ttl")

	ttl, ok, err := locker.TTL(ctx, 1, "A1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, ttl, time.Minute)
}

func TestSeatLocker_TryLockMany_AllOrNothing(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, locker.TryLock(ctx, 1, "A2", "user-b", time.Minute))

	err := locker.TryLockMany(ctx, 1, []string{"A1", "A2", "A3"}, "user-a", time.Minute)
	assert.ErrorIs(t, err, apperr.ErrSeatLocked)

	locked, err := locker.IsLocked(ctx, 1, "A1")
	require.NoError(t, err)
	assert.False(t, locked, "seats acquired before the conflict must be rolled back")

	locked, err = locker.IsLocked(ctx, 1, "A3")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestSeatLocker_Release_ByWrongOwnerIsNoop(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, locker.TryLock(ctx, 1, "A1", "user-a", time.Minute))
	require.NoError(t, locker.Release(ctx, 1, "A1", "user-b"))

	locked, err := locker.IsLocked(ctx, 1, "A1")
	require.NoError(t, err)
	assert.True(t, locked, "release by a non-owner must not remove the lock")
}

func TestSeatLocker_VerifyOwnership(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, locker.TryLock(ctx, 1, "A1", "user-a", time.Minute))

	assert.NoError(t, locker.VerifyOwnership(ctx, 1, "A1", "user-a"))
	assert.ErrorIs(t, locker.VerifyOwnership(ctx, 1, "A1", "user-b"), apperr.ErrLockOwnerMismatch)
	assert.ErrorIs(t, locker.VerifyOwnership(ctx, 1, "A9", "user-a"), apperr.ErrSeatNotLocked)
}

func TestSeatLocker_LockedSeatsForEvent(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, locker.TryLock(ctx, 1, "A1", "user-a", time.Minute))
	require.NoError(t, locker.TryLock(ctx, 1, "A2", "user-b", time.Minute))
	require.NoError(t, locker.TryLock(ctx, 2, "B1", "user-c", time.Minute))

	owners, err := locker.LockedSeatsForEvent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A1": "user-a", "A2": "user-b"}, owners)
}

func TestSeatLocker_TryLock_SameOwnerReentrantUnderConcurrency(t *testing.T) {
	locker := reservation.NewSeatLocker(lockstore.NewMemoryStore())
	ctx := context.Background()

	const racers = 20
	var wg sync.WaitGroup
	wins := make([]bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := locker.TryLock(ctx, 1, "A1", "racer", time.Minute)
			wins[i] = err == nil
		}(i)
	}
	wg.Wait()

	// All racers share ownerID "racer" here, so every attempt is
	// re-entrant and should succeed; the real exclusion test is
	// across distinct owners, covered above.
	for _, won := range wins {
		assert.True(t, won)
	}
}
