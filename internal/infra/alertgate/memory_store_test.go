package alertgate

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAcquireHoldsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "alert:sub-1:warning", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Acquire(ctx, "alert:sub-1:warning", 30*time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	clock.Advance(31 * time.Minute)

	ok, err = store.Acquire(ctx, "alert:sub-1:warning", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "alert:sub-1:warning", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Acquire(ctx, "alert:sub-1:danger", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Acquire(ctx, "alert:sub-2:warning", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStoreTouchResetsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "alert:sub-1:danger", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(20 * time.Minute)
	require.NoError(t, store.Touch(ctx, "alert:sub-1:danger", 30*time.Minute))

	// 25 minutes after the touch the original window would have lapsed,
	// but the refreshed one still holds.
	clock.Advance(25 * time.Minute)
	ok, err = store.Acquire(ctx, "alert:sub-1:danger", 30*time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}
