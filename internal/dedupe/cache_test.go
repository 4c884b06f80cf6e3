// ABOUTME: Tests for the webhook dedupe cache
// ABOUTME: Covers duplicate detection, TTL expiry, and capacity eviction

package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark_FirstTimeIsNew(t *testing.T) {
	c := New(time.Minute, 100)
	assert.False(t, c.CheckAndMark("SM123"))
	assert.True(t, c.CheckAndMark("SM123"))
}

func TestCheckAndMark_DistinctSIDs(t *testing.T) {
	c := New(time.Minute, 100)
	assert.False(t, c.CheckAndMark("SM1"))
	assert.False(t, c.CheckAndMark("SM2"))
}

func TestCheckAndMark_ExpiresAfterTTL(t *testing.T) {
	c := New(time.Minute, 100)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	assert.False(t, c.CheckAndMark("SM1"))
	current = current.Add(30 * time.Second)
	assert.True(t, c.CheckAndMark("SM1"))
	current = current.Add(31 * time.Second)
	assert.False(t, c.CheckAndMark("SM1"), "expired SIDs are new again")
}

func TestCheckAndMark_CapacityEvictsOldest(t *testing.T) {
	c := New(time.Hour, 2)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.CheckAndMark("SM1")
	current = current.Add(time.Second)
	c.CheckAndMark("SM2")
	current = current.Add(time.Second)
	c.CheckAndMark("SM3") // evicts SM1, the oldest

	assert.False(t, c.CheckAndMark("SM1"), "oldest entry was evicted")
	assert.True(t, c.CheckAndMark("SM3"))
}
