package metrics

import (
	"sync"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

// CallMetrics is the daily call-center rollup.
type CallMetrics struct {
	Day             string           `json:"day"`
	TotalToday      int64            `json:"total_today"`
	CompletedToday  int64            `json:"completed_today"`
	ByStatus        map[string]int64 `json:"by_status"`
	AvgDuration     time.Duration    `json:"avg_duration"`
	SuccessRate     float64          `json:"success_rate"`
	AverageWaitTime time.Duration    `json:"average_wait_time"`
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func WithExporter(e *Exporter) Option {
	return func(a *Aggregator) {
		a.exporter = e
	}
}

// Aggregator counts every terminal call session exactly once and resets its daily
// counters when the calendar day of the injected clock changes.
type Aggregator struct {
	mu       sync.Mutex
	now      func() time.Time
	exporter *Exporter

	day           string
	total         int64
	completed     int64
	byStatus      map[contractx.CallStatus]int64
	totalDuration time.Duration
	waits         int64
	totalWait     time.Duration
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		now:      time.Now,
		byStatus: make(map[contractx.CallStatus]int64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.day = dayOf(a.now())
	return a
}

// RecordSession counts one session that ended in status after running for d.
func (a *Aggregator) RecordSession(status contractx.CallStatus, d time.Duration) {
	if d < 0 {
		d = 0
	}
	a.mu.Lock()
	a.rollover()
	a.total++
	if status == contractx.CallCompleted {
		a.completed++
	}
	a.byStatus[status]++
	a.totalDuration += d
	a.mu.Unlock()

	a.exporter.ObserveSession(status, d)
}

// RecordWait records how long a queued call waited before it was promoted.
func (a *Aggregator) RecordWait(d time.Duration) {
	if d < 0 {
		d = 0
	}
	a.mu.Lock()
	a.rollover()
	a.waits++
	a.totalWait += d
	a.mu.Unlock()

	a.exporter.ObserveWait(d)
}

func (a *Aggregator) Snapshot() CallMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollover()

	out := CallMetrics{
		Day:            a.day,
		TotalToday:     a.total,
		CompletedToday: a.completed,
		ByStatus:       make(map[string]int64, len(a.byStatus)),
	}
	for status, n := range a.byStatus {
		out.ByStatus[string(status)] = n
	}
	if a.total > 0 {
		out.AvgDuration = a.totalDuration / time.Duration(a.total)
		out.SuccessRate = float64(a.completed) / float64(a.total)
	}
	if a.waits > 0 {
		out.AverageWaitTime = a.totalWait / time.Duration(a.waits)
	}
	return out
}

// rollover must be called with mu held for writing.
func (a *Aggregator) rollover() {
	today := dayOf(a.now())
	if today == a.day {
		return
	}
	a.day = today
	a.total = 0
	a.completed = 0
	a.byStatus = make(map[contractx.CallStatus]int64)
	a.totalDuration = 0
	a.waits = 0
	a.totalWait = 0
}

func dayOf(t time.Time) string {
	return t.Format(time.DateOnly)
}
