package orchestrator

import (
	"context"
	"time"

	cachex "github.com/tanpawarit/freight-aiflow/agent/cache"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	voicex "github.com/tanpawarit/freight-aiflow/agent/voice"
)

// SystemMetrics is a read-only composite view of the running system.
type SystemMetrics struct {
	Initialized          bool                                   `json:"initialized"`
	ActiveAgents         int                                    `json:"active_agents"`
	BusyAgents           int                                    `json:"busy_agents"`
	TotalAgents          int                                    `json:"total_agents"`
	Utilization          float64                                `json:"utilization"`
	Pools                map[contractx.CapabilityKind]PoolStats `json:"pools,omitempty"`
	TotalProspects       int64                                  `json:"total_prospects"`
	ActiveCalls          int                                    `json:"active_calls"`
	Calls                voicex.Snapshot                        `json:"calls"`
	DailyRevenueEstimate float64                                `json:"daily_revenue_estimate"`
	CacheHitRate         float64                                `json:"cache_hit_rate"`
	CostSavings          float64                                `json:"cost_savings"`
	Caches               []cachex.Stats                         `json:"caches,omitempty"`
	Usage                []cachex.UsageStat                     `json:"usage,omitempty"`
	Degraded             []string                               `json:"degraded,omitempty"`
	Uptime               time.Duration                          `json:"uptime"`
	GeneratedAt          time.Time                              `json:"generated_at"`
}

// Snapshot gathers agent, call-center and cache figures. Values are read without a
// global lock and may trail in-flight updates.
func (o *Orchestrator) Snapshot(ctx context.Context) SystemMetrics {
	now := o.now()
	out := SystemMetrics{GeneratedAt: now}
	if !o.initialized.Load() {
		return out
	}

	out.Initialized = true
	out.Uptime = now.Sub(o.startedAt)
	out.Degraded = append([]string(nil), o.degraded...)
	out.Pools = make(map[contractx.CapabilityKind]PoolStats, len(o.pools))
	for _, kind := range contractx.Capabilities() {
		st := o.pools[kind].stats()
		out.Pools[kind] = st
		out.TotalAgents += st.Total
		out.BusyAgents += st.Busy
		out.ActiveAgents += st.Idle + st.Busy

		o.deps.Exporter.SetAgents(kind, contractx.AgentIdle, st.Idle)
		o.deps.Exporter.SetAgents(kind, contractx.AgentBusy, st.Busy)
		o.deps.Exporter.SetAgents(kind, contractx.AgentOffline, st.Offline)
	}
	if out.TotalAgents > 0 {
		out.Utilization = float64(out.BusyAgents) / float64(out.TotalAgents)
	}

	out.TotalProspects = o.prospects.Load()
	out.Calls = o.voice.Snapshot()
	out.ActiveCalls = out.Calls.ActiveCount
	out.DailyRevenueEstimate = o.deps.Revenue.Estimate(now)

	var served, total int64
	out.Caches = []cachex.Stats{o.companies.Stats(ctx), o.routes.Stats(ctx), o.markets.Stats(ctx)}
	for _, st := range out.Caches {
		served += st.Hits + st.Coalesced
		total += st.Hits + st.Coalesced + st.Misses
		out.CostSavings += st.Savings
		o.deps.Exporter.SetCacheHitRate(st.Name, st.HitRate)
	}
	if total > 0 {
		out.CacheHitRate = float64(served) / float64(total)
	}
	out.Usage = o.UsageStats()
	return out
}
