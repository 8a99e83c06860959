package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxNormalize_RangeIsZeroToOne(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, minMaxNormalize(1, 1, 5))
	assert.Equal(t, 1.0, minMaxNormalize(5, 1, 5))
	assert.Equal(t, 0.5, minMaxNormalize(3, 1, 5))
}

func TestMinMaxNormalize_ZeroRangeReturnsZero(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, minMaxNormalize(3, 3, 3))
}

func TestNormalizeLex_EmptyHitsReturnsEmptyMap(t *testing.T) {
	t.Parallel()
	scores := normalizeLex(nil)
	assert.Empty(t, scores)
}

func TestNormalizeLex_SingleHitNormalizesToZero(t *testing.T) {
	t.Parallel()
	hits := []lexicalHit{{ChunkHash: "a", Score: 2.5}}
	scores := normalizeLex(hits)
	assert.Equal(t, 0.0, scores["a"])
}
