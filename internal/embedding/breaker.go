package embedding

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current posture.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	breakerWindow       = 10 * time.Second
	breakerBuckets      = 10
	breakerBucketWidth  = breakerWindow / breakerBuckets
	breakerFailureRatio = 0.5
	breakerOpenDuration = 60 * time.Second
	breakerMinSamples   = 5
)

// breakerBucket counts successes/failures in one slice of the rolling
// window.
type breakerBucket struct {
	start    time.Time
	successes int
	failures  int
}

// Breaker is a rolling-window circuit breaker over embedding sidecar
// calls, per spec §4.E: once failures cross a 50% threshold over the last
// 10 seconds, it opens for 60 seconds and callers are served from cache
// only, then it half-opens to probe recovery with a single trial call.
type Breaker struct {
	mu        sync.Mutex
	buckets   []breakerBucket
	state     BreakerState
	openedAt  time.Time
	trialInFlight bool
}

// NewBreaker returns a closed breaker ready to record outcomes.
func NewBreaker() *Breaker {
	return &Breaker{
		buckets: make([]breakerBucket, breakerBuckets),
		state:   BreakerClosed,
	}
}

// Allow reports whether a call should be attempted right now, and moves
// an open breaker to half-open once its open period has elapsed.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if now.Sub(b.openedAt) >= breakerOpenDuration {
			b.state = BreakerHalfOpen
			b.trialInFlight = false
		} else {
			return false
		}
		fallthrough
	case BreakerHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful call outcome at time now.
func (b *Breaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
		b.trialInFlight = false
		b.resetBuckets()
		return
	}
	b.bucketAt(now).successes++
}

// RecordFailure records a failed call outcome at time now, opening the
// breaker if the failure ratio over the rolling window crosses threshold.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = now
		b.trialInFlight = false
		return
	}

	b.bucketAt(now).failures++
	successes, failures := b.windowTotals(now)
	total := successes + failures
	if total >= breakerMinSamples && float64(failures)/float64(total) >= breakerFailureRatio {
		b.state = BreakerOpen
		b.openedAt = now
	}
}

// State returns the breaker's current posture.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) bucketAt(now time.Time) *breakerBucket {
	idx := (now.UnixNano() / int64(breakerBucketWidth)) % int64(len(b.buckets))
	bucket := &b.buckets[idx]
	if now.Sub(bucket.start) >= breakerWindow {
		*bucket = breakerBucket{start: now}
	}
	return bucket
}

func (b *Breaker) windowTotals(now time.Time) (successes, failures int) {
	cutoff := now.Add(-breakerWindow)
	for i := range b.buckets {
		if b.buckets[i].start.Before(cutoff) {
			continue
		}
		successes += b.buckets[i].successes
		failures += b.buckets[i].failures
	}
	return successes, failures
}

func (b *Breaker) resetBuckets() {
	b.buckets = make([]breakerBucket, breakerBuckets)
}
