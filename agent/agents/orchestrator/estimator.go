package orchestrator

import (
	"sync"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const defaultQuoteWinRate = 0.3

// QuoteRevenueEstimator projects the day's revenue as the sum of quoted totals
// scaled by the expected win rate. Totals reset when the UTC day changes.
type QuoteRevenueEstimator struct {
	winRate float64

	mu     sync.Mutex
	day    string
	quoted float64
}

var _ contractx.RevenueEstimator = (*QuoteRevenueEstimator)(nil)

func NewQuoteRevenueEstimator(winRate float64) *QuoteRevenueEstimator {
	if winRate <= 0 || winRate > 1 {
		winRate = defaultQuoteWinRate
	}
	return &QuoteRevenueEstimator{winRate: winRate}
}

func (e *QuoteRevenueEstimator) Observe(res contractx.Result) {
	if res.Status != contractx.TaskSucceeded || res.Capability != contractx.CapabilityRateQuoting {
		return
	}
	q, ok := res.Output.(contractx.FreightQuote)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	day := res.FinishedAt.UTC().Format(time.DateOnly)
	if day != e.day {
		e.day = day
		e.quoted = 0
	}
	e.quoted += q.TotalRate
}

func (e *QuoteRevenueEstimator) Estimate(now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.day != now.UTC().Format(time.DateOnly) {
		return 0
	}
	return e.quoted * e.winRate
}
