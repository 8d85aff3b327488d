package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(0)
	defer store.Close()

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	t.Run("first mark wins, second is a duplicate", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "evt-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("expired id can be marked again", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt-2", time.Minute)
		require.NoError(t, err)

		clock = clock.Add(2 * time.Minute)
		isNew, err := store.MarkProcessed(ctx, "evt-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("sweep removes expired ids", func(t *testing.T) {
		clock = clock.Add(48 * time.Hour)
		store.sweep()
		assert.Equal(t, 0, store.Len())
	})
}

func TestMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestNewIdempotencyStore_FallsBackWithoutRedis(t *testing.T) {
	store := NewIdempotencyStore(nil, zap.NewNop())
	defer store.Close()

	_, ok := store.(*MemoryIdempotencyStore)
	assert.True(t, ok)
}
