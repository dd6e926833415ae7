package orchestrator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

type EventKind string

const (
	EventInitialized   EventKind = "system:initialized"
	EventError         EventKind = "system:error"
	EventTaskCompleted EventKind = "task:completed"
	EventTaskFailed    EventKind = "task:failed"
)

// Event is a lifecycle notification. Component and Cause are set on system:error,
// Result on task events.
type Event struct {
	Kind      EventKind         `json:"kind"`
	At        time.Time         `json:"at"`
	Component string            `json:"component,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Degraded  []string          `json:"degraded,omitempty"`
	Result    *contractx.Result `json:"result,omitempty"`
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// eventBus delivers every event to each subscriber synchronously, in subscription
// order. A subscriber registered during a publish sees only later events.
type eventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
	logger zerolog.Logger
	onSend func(EventKind)
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.RUnlock()

	if b.onSend != nil {
		b.onSend(ev.Kind)
	}
	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *eventBus) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", string(ev.Kind)).Uint64("subscriber", s.id).Msg("event subscriber panicked")
		}
	}()
	s.fn(ev)
}
