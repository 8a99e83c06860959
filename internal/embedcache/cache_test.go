package embedcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetThenGetHits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	vec := []float32{0.1, 0.2, 0.3, 0.4}
	require.NoError(t, c.Set(ctx, "hash1", "bge-small", "v1", 4, vec))

	got, ok, err := c.Get(ctx, "hash1", "bge-small", "v1", 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec, got)
	assert.Equal(t, float64(1), c.HitRate())
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "nope", "bge-small", "v1", 4)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, float64(0), c.HitRate())
}

func TestCache_InvalidateByDimensions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "hash1", "bge-small", "v1", 4, []float32{1, 2, 3, 4}))
	require.NoError(t, c.InvalidateByDimensions(4))

	_, ok, err := c.Get(ctx, "hash1", "bge-small", "v1", 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_DifferentDimensionsAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "hash1", "bge-small", "v1", 4, []float32{1, 2, 3, 4}))
	require.NoError(t, c.Set(ctx, "hash1", "bge-large", "v1", 8, []float32{1, 2, 3, 4, 5, 6, 7, 8}))

	smallVec, ok, err := c.Get(ctx, "hash1", "bge-small", "v1", 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, smallVec, 4)

	largeVec, ok, err := c.Get(ctx, "hash1", "bge-large", "v1", 8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, largeVec, 8)
}
