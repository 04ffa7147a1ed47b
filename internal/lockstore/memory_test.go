package lockstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffictacos/reservation-core/internal/lockstore"
)

func TestMemoryStore_SetIfAbsent(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "k1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held key")

	val, found, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "owner-a", val)
}

func TestMemoryStore_ExpireRequiresMatchingOwner(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, "k1", "owner-a", time.Minute)
	require.NoError(t, err)

	extended, err := s.Expire(ctx, "k1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)

	extended, err = s.Expire(ctx, "k1", "owner-a", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
}

func TestMemoryStore_DeleteIfEqualsRequiresMatchingOwner(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, "k1", "owner-a", time.Minute)
	require.NoError(t, err)

	deleted, err := s.DeleteIfEquals(ctx, "k1", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.DeleteIfEquals(ctx, "k1", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_EntryExpires(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, "k1", "owner-a", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, found, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found, "entry past its ttl must read as absent")

	ok, err := s.SetIfAbsent(ctx, "k1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired key must be acquirable again")
}

func TestMemoryStore_IncrDecr(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	n, err := s.Incr(ctx, "counter", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	n, err = s.Incr(ctx, "counter", -3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = s.Incr(ctx, "counter", -20)
	require.NoError(t, err)
	assert.Equal(t, int64(-13), n, "raw value must be allowed to go negative")
}

func TestMemoryStore_Scan(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	_, _ = s.SetIfAbsent(ctx, "lock:event:1:seat:A1", "u1", time.Minute)
	_, _ = s.SetIfAbsent(ctx, "lock:event:1:seat:A2", "u1", time.Minute)
	_, _ = s.SetIfAbsent(ctx, "lock:event:2:seat:B1", "u2", time.Minute)

	keys, err := s.Scan(ctx, "lock:event:1:seat:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lock:event:1:seat:A1", "lock:event:1:seat:A2"}, keys)
}

func TestMemoryStore_ConcurrentSetIfAbsent_ExactlyOneWinner(t *testing.T) {
	s := lockstore.NewMemoryStore()
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	results := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.SetIfAbsent(ctx, "contended", "owner", time.Minute)
			require.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent SetIfAbsent call must win")
}
