// Package ratelimit implements the sliding-window per-key limiter from
// spec.md §4.10, component J — used to guard the auth endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// sweepThreshold triggers a whole-map sweep once the bucket count exceeds
// it, reclaiming memory from keys that have gone idle (spec.md §4.10).
const sweepThreshold = 1024

// Limiter is a per-key sliding window: for each key it keeps arrival
// timestamps and prunes anything outside the window on every check.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// New builds a limiter admitting up to limit events per window, per key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
	}
}

// Allow is the one-phase convenience path: check-then-record atomically.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket := l.pruneLocked(key, now)
	if len(bucket) >= l.limit {
		l.buckets[key] = bucket
		return false
	}
	l.buckets[key] = append(bucket, now)
	l.maybeSweepLocked()
	return true
}

// Check peeks at whether key would currently be admitted, without
// recording an event. Used by flows that need to decide before they know
// whether the guarded action will actually happen.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket := l.pruneLocked(key, time.Now())
	l.buckets[key] = bucket
	return len(bucket) < l.limit
}

// Record force-inserts an event for key regardless of the current count —
// the write half of a two-phase check/record flow.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	bucket := l.pruneLocked(key, now)
	l.buckets[key] = append(bucket, now)
	l.maybeSweepLocked()
}

func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	existing := l.buckets[key]
	kept := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// maybeSweepLocked drops every key whose bucket has emptied out, once the
// total bucket count passes sweepThreshold. Called with mu held.
func (l *Limiter) maybeSweepLocked() {
	if len(l.buckets) <= sweepThreshold {
		return
	}
	now := time.Now()
	for key := range l.buckets {
		if len(l.pruneLocked(key, now)) == 0 {
			delete(l.buckets, key)
		}
	}
}
