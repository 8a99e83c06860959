package embedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_StartsClosedAndAllows(t *testing.T) {
	t.Parallel()
	b := NewBreaker()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow(time.Now()))
}

func TestBreaker_OpensAfterMajorityFailures(t *testing.T) {
	t.Parallel()
	b := NewBreaker()
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.True(t, b.Allow(now))
		b.RecordFailure(now)
		now = now.Add(time.Millisecond)
	}

	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow(now))
}

func TestBreaker_HalfOpensAfterOpenDurationAndRecoversOnSuccess(t *testing.T) {
	t.Parallel()
	b := NewBreaker()
	now := time.Now()
	for i := 0; i < 6; i++ {
		b.RecordFailure(now)
		now = now.Add(time.Millisecond)
	}
	require.Equal(t, BreakerOpen, b.State())

	future := now.Add(breakerOpenDuration + time.Second)
	require.True(t, b.Allow(future))
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.RecordSuccess(future)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	b := NewBreaker()
	now := time.Now()
	for i := 0; i < 6; i++ {
		b.RecordFailure(now)
		now = now.Add(time.Millisecond)
	}
	future := now.Add(breakerOpenDuration + time.Second)
	require.True(t, b.Allow(future))
	require.Equal(t, BreakerHalfOpen, b.State())

	b.RecordFailure(future)
	assert.Equal(t, BreakerOpen, b.State())
}
