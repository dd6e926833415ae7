package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	specialistx "github.com/tanpawarit/freight-aiflow/agent/agents/specialist"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

// PoolStats counts the agents of one capability by status.
type PoolStats struct {
	Total       int     `json:"total"`
	Idle        int     `json:"idle"`
	Busy        int     `json:"busy"`
	Offline     int     `json:"offline"`
	Utilization float64 `json:"utilization"`
}

// pool is a fixed set of agents for one capability. The agent slice never changes
// after Initialize, so acquisition scans it without a pool-wide lock and relies on
// each agent's own mutex.
type pool struct {
	kind   contractx.CapabilityKind
	agents []*specialistx.Agent
	next   atomic.Uint64

	mu   sync.Mutex
	wake chan struct{}
}

func newPool(kind contractx.CapabilityKind) *pool {
	return &pool{kind: kind, wake: make(chan struct{})}
}

// notify wakes every goroutine waiting for an agent of this pool.
func (p *pool) notify() {
	p.mu.Lock()
	close(p.wake)
	p.wake = make(chan struct{})
	p.mu.Unlock()
}

func (p *pool) waitChan() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wake
}

func (p *pool) tryAcquire() *specialistx.Agent {
	n := len(p.agents)
	if n == 0 {
		return nil
	}
	start := int(p.next.Add(1) % uint64(n))
	for i := 0; i < n; i++ {
		a := p.agents[(start+i)%n]
		if a.TryAcquire() {
			return a
		}
	}
	return nil
}

// acquire returns a busy agent owned by the caller. With wait <= 0 it fails at once
// when every agent is taken; otherwise it waits for a release until wait elapses or
// ctx is done, whichever comes first.
func (p *pool) acquire(ctx context.Context, wait time.Duration) (*specialistx.Agent, error) {
	if a := p.tryAcquire(); a != nil {
		return a, nil
	}
	if len(p.agents) == 0 {
		return nil, fmt.Errorf("%w: no %s agents registered", contractx.ErrNoAgentAvailable, p.kind)
	}
	if wait <= 0 {
		return nil, fmt.Errorf("%w: all %d %s agents are busy or offline", contractx.ErrNoAgentAvailable, len(p.agents), p.kind)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		wake := p.waitChan()
		if a := p.tryAcquire(); a != nil {
			return a, nil
		}
		select {
		case <-wake:
		case <-timer.C:
			return nil, fmt.Errorf("%w: no %s agent freed up within %s", contractx.ErrNoAgentAvailable, p.kind, wait)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", contractx.ErrNoAgentAvailable, ctx.Err())
		}
	}
}

func (p *pool) stats() PoolStats {
	st := PoolStats{Total: len(p.agents)}
	for _, a := range p.agents {
		switch a.Status() {
		case contractx.AgentIdle:
			st.Idle++
		case contractx.AgentBusy:
			st.Busy++
		case contractx.AgentOffline:
			st.Offline++
		}
	}
	if st.Total > 0 {
		st.Utilization = float64(st.Busy) / float64(st.Total)
	}
	return st
}
