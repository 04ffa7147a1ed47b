package reservation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/reservation-core/internal/apperr"
	"github.com/traffictacos/reservation-core/internal/lockstore"
	"github.com/traffictacos/reservation-core/internal/reservation"
)

func TestTatkalCounter_ReserveAndRelease(t *testing.T) {
	counter := reservation.NewTatkalCounter(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, counter.Initialize(ctx, 1, 10))

	require.NoError(t, counter.TryReserve(ctx, 1, 4))
	remaining, err := counter.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), remaining)

	require.NoError(t, counter.Release(ctx, 1, 2))
	remaining, err = counter.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), remaining)
}

func TestTatkalCounter_SoldOutCompensates(t *testing.T) {
	counter := reservation.NewTatkalCounter(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, counter.Initialize(ctx, 1, 2))

	err := counter.TryReserve(ctx, 1, 5)
	assert.ErrorIs(t, err, apperr.ErrInventorySoldOut)

	remaining, err := counter.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining, "a rejected reservation must compensate back to its pre-attempt value")
}

func TestTatkalCounter_RemainingNeverNegative(t *testing.T) {
	counter := reservation.NewTatkalCounter(lockstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, counter.Initialize(ctx, 1, 1))
	require.NoError(t, counter.TryReserve(ctx, 1, 1))

	soldOut, err := counter.IsSoldOut(ctx, 1)
	require.NoError(t, err)
	assert.True(t, soldOut)

	err = counter.TryReserve(ctx, 1, 1)
	assert.ErrorIs(t, err, apperr.ErrInventorySoldOut)

	remaining, err := counter.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestTatkalCounter_TryReserve_RejectsNonPositiveQuantity(t *testing.T) {
	counter := reservation.NewTatkalCounter(lockstore.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, counter.Initialize(ctx, 1, 10))

	assert.ErrorIs(t, counter.TryReserve(ctx, 1, 0), apperr.ErrInvalidRequest)
	assert.ErrorIs(t, counter.TryReserve(ctx, 1, -1), apperr.ErrInvalidRequest)
}

func TestTatkalCounter_Remaining_NotFoundBeforeInitialize(t *testing.T) {
	counter := reservation.NewTatkalCounter(lockstore.NewMemoryStore())
	ctx := context.Background()

	_, err := counter.Remaining(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrInventoryNotFound)
}

// TestTatkalCounter_ConcurrentOversellNeverExceedsCapacity exercises the
// decrement-then-compensate pattern under a pile of concurrent callers:
// with capacity 10 and 50 concurrent requests for 1 seat each, exactly
// 10 must succeed and the remaining 40 must see sold_out, regardless of
// scheduling order.
func TestTatkalCounter_ConcurrentOversellNeverExceedsCapacity(t *testing.T) {
	counter := reservation.NewTatkalCounter(lockstore.NewMemoryStore())
	ctx := context.Background()

	const capacity = 10
	const callers = 50
	require.NoError(t, counter.Initialize(ctx, 1, capacity))

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = counter.TryReserve(ctx, 1, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, apperr.ErrInventorySoldOut)
		}
	}
	assert.Equal(t, capacity, succeeded)

	remaining, err := counter.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}
