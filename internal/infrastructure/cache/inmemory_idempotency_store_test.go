package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkAndCheck(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	seen, err := store.IsProcessed(ctx, "callback:abc:0")
	require.NoError(t, err)
	assert.False(t, seen)

	fresh, err := store.MarkProcessed(ctx, "callback:abc:0", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	// A second mark reports the key as already present
	fresh, err = store.MarkProcessed(ctx, "callback:abc:0", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)

	seen, err = store.IsProcessed(ctx, "callback:abc:0")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	fresh, err := store.MarkProcessed(ctx, "callback:abc:0", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, fresh)

	time.Sleep(5 * time.Millisecond)

	seen, err := store.IsProcessed(ctx, "callback:abc:0")
	require.NoError(t, err)
	assert.False(t, seen)

	// An expired key can be marked again
	fresh, err = store.MarkProcessed(ctx, "callback:abc:0", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "callback:abc:0", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	seen, err := store.IsProcessed(ctx, "callback:abc:0")
	require.NoError(t, err)
	assert.False(t, seen)
}
