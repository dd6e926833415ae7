package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUsageTrackerCleanup(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	u := NewUsageTracker(clock.Now)
	u.Record("route_api", 0.35)
	clock.Advance(25 * time.Hour)
	u.Record("company_registry", 0.35)
	u.Record("company_registry", 0)
	u.Record(" ", 1)

	assert.Equal(t, 1, u.Cleanup(24*time.Hour))

	stats := u.Snapshot()
	if assert.Len(t, stats, 1) {
		assert.Equal(t, "company_registry", stats[0].Source)
		assert.Equal(t, int64(2), stats[0].QueryCount)
		assert.Equal(t, clock.Now(), stats[0].LastUpdated)
	}
}

func TestNilUsageTrackerIsSafe(t *testing.T) {
	t.Parallel()

	var u *UsageTracker
	u.Record("x", 1)
	assert.Nil(t, u.Snapshot())
	assert.Equal(t, 0, u.Cleanup(time.Hour))
}
