package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	metricsx "github.com/tanpawarit/freight-aiflow/agent/metrics"
)

const (
	defaultMaxConcurrent = 25
	defaultQueueSize     = 50
)

type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Config sizes the call center. A zero QueueSize means the default; set DisableQueue
// to reject calls outright once every line is busy.
type Config struct {
	MaxConcurrent int
	QueueSize     int
	DisableQueue  bool
}

// Session is a copy of a call's state at the time it was read.
type Session struct {
	ID          string               `json:"id"`
	Target      string               `json:"target"`
	Campaign    string               `json:"campaign"`
	Direction   Direction            `json:"direction"`
	Status      contractx.CallStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   time.Time            `json:"started_at,omitempty"`
	ConnectedAt time.Time            `json:"connected_at,omitempty"`
}

// Snapshot combines live line usage with the aggregator's daily rollup.
type Snapshot struct {
	ActiveCount     int           `json:"active_count"`
	QueueLength     int           `json:"queue_length"`
	MaxConcurrent   int           `json:"max_concurrent"`
	Utilization     float64       `json:"utilization"`
	TotalToday      int64         `json:"total_today"`
	AvgDuration     time.Duration `json:"avg_duration"`
	SuccessRate     float64       `json:"success_rate"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

type session struct {
	Session
	ready chan struct{}
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager tracks live calls against a concurrency ceiling. Calls over the ceiling
// wait in a bounded FIFO and are promoted as lines free up. Every terminal session
// is written to the aggregator exactly once, under the manager lock.
type Manager struct {
	mu            sync.Mutex
	sessions      map[string]*session
	queue         *callQueue
	active        int
	maxConcurrent int

	agg    *metricsx.Aggregator
	now    func() time.Time
	logger zerolog.Logger
}

func NewManager(agg *metricsx.Aggregator, cfg Config, opts ...Option) (*Manager, error) {
	if agg == nil {
		return nil, errors.New("metrics aggregator is required")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		return nil, errors.New("queue size must be >= 0")
	}
	switch {
	case cfg.DisableQueue:
		queueSize = 0
	case queueSize == 0:
		queueSize = defaultQueueSize
	}

	m := &Manager{
		sessions:      make(map[string]*session),
		queue:         newCallQueue(queueSize),
		maxConcurrent: maxConcurrent,
		agg:           agg,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Initiate opens an outbound call, or queues it when every line is busy.
func (m *Manager) Initiate(target, campaign string) (Session, error) {
	return m.open(target, campaign, Outbound)
}

// Accept registers an inbound call from caller.
func (m *Manager) Accept(caller string) (Session, error) {
	return m.open(caller, "inbound", Inbound)
}

func (m *Manager) open(target, campaign string, dir Direction) (Session, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Session{}, fmt.Errorf("%w: call target is required", contractx.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &session{
		Session: Session{
			ID:        uuid.NewString(),
			Target:    target,
			Campaign:  strings.TrimSpace(campaign),
			Direction: dir,
			CreatedAt: now,
		},
		ready: make(chan struct{}),
	}

	if m.active < m.maxConcurrent {
		m.start(s, now)
	} else {
		if err := m.queue.push(s.ID, now); err != nil {
			return Session{}, fmt.Errorf("%w: %d calls waiting", err, m.queue.len())
		}
		s.Status = contractx.CallQueued
	}
	m.sessions[s.ID] = s

	m.logger.Debug().Str("call_id", s.ID).Str("status", string(s.Status)).Msg("call opened")
	return s.Session, nil
}

// AwaitActive blocks until the session has a line or has ended. Cancelling ctx only
// abandons the wait, not the session.
func (m *Manager) AwaitActive(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, id)
	}

	select {
	case <-ctx.Done():
		return Session{}, ctx.Err()
	case <-s.ready:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return s.Session, nil
}

func (m *Manager) Connect(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, id)
	}
	if s.Status != contractx.CallInitiated {
		return Session{}, fmt.Errorf("%w: %s -> %s", contractx.ErrInvalidTransition, s.Status, contractx.CallConnected)
	}
	s.Status = contractx.CallConnected
	s.ConnectedAt = m.now()
	return s.Session, nil
}

// Complete moves a session into a terminal status, records it and frees its line.
func (m *Manager) Complete(id string, status contractx.CallStatus) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, id)
	}
	if !canTransition(s.Status, status) {
		return Session{}, fmt.Errorf("%w: %s -> %s", contractx.ErrInvalidTransition, s.Status, status)
	}

	now := m.now()
	var duration time.Duration
	if !s.StartedAt.IsZero() {
		duration = now.Sub(s.StartedAt)
	}

	wasQueued := s.Status == contractx.CallQueued
	s.Status = status
	delete(m.sessions, id)
	m.agg.RecordSession(status, duration)

	if wasQueued {
		m.queue.remove(id)
		close(s.ready)
	} else {
		m.active--
		m.promote(now)
	}

	m.logger.Debug().Str("call_id", id).Str("status", string(status)).Dur("duration", duration).Msg("call ended")
	return s.Session, nil
}

func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, id)
	}
	return s.Session, nil
}

// Sessions lists every live session.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Session)
	}
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	daily := m.agg.Snapshot()
	return Snapshot{
		ActiveCount:     m.active,
		QueueLength:     m.queue.len(),
		MaxConcurrent:   m.maxConcurrent,
		Utilization:     float64(m.active) / float64(m.maxConcurrent),
		TotalToday:      daily.TotalToday,
		AvgDuration:     daily.AvgDuration,
		SuccessRate:     daily.SuccessRate,
		AverageWaitTime: daily.AverageWaitTime,
	}
}

// start must be called with mu held.
func (m *Manager) start(s *session, now time.Time) {
	s.Status = contractx.CallInitiated
	s.StartedAt = now
	m.active++
	close(s.ready)
}

// promote must be called with mu held.
func (m *Manager) promote(now time.Time) {
	for m.active < m.maxConcurrent {
		head, ok := m.queue.pop()
		if !ok {
			return
		}
		s, ok := m.sessions[head.id]
		if !ok {
			continue
		}
		m.start(s, now)
		m.agg.RecordWait(now.Sub(head.enqueuedAt))
	}
}

func canTransition(from, to contractx.CallStatus) bool {
	switch from {
	case contractx.CallQueued:
		return to == contractx.CallAbandoned
	case contractx.CallInitiated:
		return to == contractx.CallBusy || to == contractx.CallVoicemail || to == contractx.CallAbandoned
	case contractx.CallConnected:
		return to.Terminal()
	default:
		return false
	}
}
