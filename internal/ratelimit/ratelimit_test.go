package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "attempt %d should be admitted", i)
	}
	assert.False(t, l.Allow("a"), "4th attempt should be rejected")
}

func TestAllowPerKeyIsolated(t *testing.T) {
	l := New(1, time.Minute)
	require.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "a different key has its own bucket")
	assert.False(t, l.Allow("a"))
}

func TestWindowSlidesOpen(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	require.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow("a"), "event should have slid out of the window")
}

func TestCheckDoesNotRecord(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Check("a"))
	assert.True(t, l.Check("a"), "Check alone must not consume the budget")
	l.Record("a")
	assert.False(t, l.Check("a"))
}

func TestSweepDropsEmptyBuckets(t *testing.T) {
	l := New(1, time.Millisecond)
	for i := 0; i < sweepThreshold+5; i++ {
		l.Record(string(rune(i)))
	}
	time.Sleep(5 * time.Millisecond)
	// One more Record pushes the bucket count past sweepThreshold again and
	// triggers maybeSweepLocked, which by now finds every prior bucket
	// expired and empty.
	l.Record("trigger")

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	assert.LessOrEqual(t, n, 2, "expired buckets should have been swept, leaving only the trigger key")
}
