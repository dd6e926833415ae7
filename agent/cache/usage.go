package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// UsageStat is the running lookup bill for one external data source.
type UsageStat struct {
	Source         string    `json:"source"`
	QueryCount     int64     `json:"query_count"`
	CumulativeCost float64   `json:"cumulative_cost"`
	LastUpdated    time.Time `json:"last_updated"`
}

// UsageTracker accumulates per-source query counts and costs. Stats only grow until
// Cleanup removes sources that have not been touched for a while.
type UsageTracker struct {
	mu    sync.Mutex
	stats map[string]*UsageStat
	now   func() time.Time
}

func NewUsageTracker(now func() time.Time) *UsageTracker {
	if now == nil {
		now = time.Now
	}
	return &UsageTracker{
		stats: make(map[string]*UsageStat),
		now:   now,
	}
}

func (u *UsageTracker) Record(source string, cost float64) {
	if u == nil {
		return
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return
	}
	if cost < 0 {
		cost = 0
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	st, ok := u.stats[source]
	if !ok {
		st = &UsageStat{Source: source}
		u.stats[source] = st
	}
	st.QueryCount++
	st.CumulativeCost += cost
	st.LastUpdated = u.now()
}

// Snapshot returns a copy of every stat ordered by source name.
func (u *UsageTracker) Snapshot() []UsageStat {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UsageStat, 0, len(u.stats))
	for _, st := range u.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Cleanup drops stats whose last update is older than olderThan and reports how many
// were removed.
func (u *UsageTracker) Cleanup(olderThan time.Duration) int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	cutoff := u.now().Add(-olderThan)
	removed := 0
	for source, st := range u.stats {
		if st.LastUpdated.Before(cutoff) {
			delete(u.stats, source)
			removed++
		}
	}
	return removed
}
