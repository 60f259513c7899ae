package cache

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/revision/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	_, err := c.GetStats(ctx, "p-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetStats(ctx, "p-1", &model.VersionStats{TotalVersions: 3, ContentSize: 100, StoredSize: 40}))

	got, err := c.GetStats(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalVersions)

	// mutating the returned value must not leak into the cache
	got.TotalVersions = 99
	again, err := c.GetStats(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.TotalVersions)

	require.NoError(t, c.InvalidateStats(ctx, "p-1"))
	_, err = c.GetStats(ctx, "p-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Millisecond)

	require.NoError(t, c.SetStats(ctx, "p-1", &model.VersionStats{TotalVersions: 1}))
	time.Sleep(5 * time.Millisecond)

	_, err := c.GetStats(ctx, "p-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	c := NewNop()

	require.NoError(t, c.SetStats(ctx, "p-1", &model.VersionStats{TotalVersions: 1}))
	_, err := c.GetStats(ctx, "p-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
