package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	"golang.org/x/sync/singleflight"
)

// Stats is a point-in-time view of one cache's effectiveness.
type Stats struct {
	Name      string  `json:"name"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Coalesced int64   `json:"coalesced"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
	Savings   float64 `json:"savings"`
}

type Option func(*options)

type options struct {
	now    func() time.Time
	usage  *UsageTracker
	source string
	cost   float64
	logger zerolog.Logger
	dedupe bool
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithUsage charges cost to source in tracker for every lookup that misses.
func WithUsage(tracker *UsageTracker, source string, cost float64) Option {
	return func(o *options) {
		o.usage = tracker
		if trimmed := strings.TrimSpace(source); trimmed != "" {
			o.source = trimmed
		}
		if cost >= 0 {
			o.cost = cost
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithoutDedupe lets concurrent misses on the same key compute independently; the
// last write wins.
func WithoutDedupe() Option {
	return func(o *options) {
		o.dedupe = false
	}
}

// Cache memoises results of expensive lookups for a caller-chosen ttl.
type Cache[V any] struct {
	name    string
	backend Backend[V]
	opts    options
	group   singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

func New[V any](name string, backend Backend[V], opts ...Option) (*Cache[V], error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("cache name is required")
	}
	if backend == nil {
		return nil, errors.New("cache backend is required")
	}

	o := options{
		now:    time.Now,
		source: name,
		logger: zerolog.Nop(),
		dedupe: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.logger = o.logger.With().Str("cache", name).Logger()

	return &Cache[V]{
		name:    name,
		backend: backend,
		opts:    o,
	}, nil
}

func (c *Cache[V]) Name() string {
	return c.name
}

// GetOrCompute returns the cached value for descriptor when it is younger than ttl,
// otherwise runs compute and stores its result. Compute errors are returned unchanged
// and nothing is stored.
func (c *Cache[V]) GetOrCompute(ctx context.Context, descriptor any, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	var zero V
	if compute == nil {
		return zero, fmt.Errorf("%w: compute function is required", contractx.ErrInvalidInput)
	}
	key, err := Key(descriptor)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", contractx.ErrInvalidInput, err)
	}

	if v, ok := c.lookup(ctx, key, ttl); ok {
		c.hits.Add(1)
		c.opts.usage.Record(c.opts.source, 0)
		return v, nil
	}
	if !c.opts.dedupe {
		return c.fill(ctx, key, compute)
	}

	leader := false
	out, err, _ := c.group.Do(key, func() (any, error) {
		leader = true
		// Another flight may have stored the key between our lookup and Do.
		if v, ok := c.lookup(ctx, key, ttl); ok {
			c.hits.Add(1)
			c.opts.usage.Record(c.opts.source, 0)
			return v, nil
		}
		return c.fill(ctx, key, compute)
	})
	if !leader {
		c.coalesced.Add(1)
		c.opts.usage.Record(c.opts.source, 0)
	}
	if err != nil {
		return zero, err
	}
	return out.(V), nil
}

func (c *Cache[V]) lookup(ctx context.Context, key string, ttl time.Duration) (V, bool) {
	var zero V
	e, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.opts.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return zero, false
	}
	if !ok || !e.Fresh(c.opts.now(), ttl) {
		return zero, false
	}
	return e.Value, true
}

func (c *Cache[V]) fill(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, error) {
	c.misses.Add(1)
	c.opts.usage.Record(c.opts.source, c.opts.cost)

	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	if err := c.backend.Set(ctx, key, Entry[V]{Value: v, InsertedAt: c.opts.now()}); err != nil {
		c.opts.logger.Warn().Err(err).Str("key", key).Msg("cache write failed, value not stored")
	}
	return v, nil
}

// InvalidateOlderThan removes every entry inserted more than maxAge ago.
func (c *Cache[V]) InvalidateOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge < 0 {
		return 0, fmt.Errorf("%w: max age must be >= 0", contractx.ErrInvalidInput)
	}
	return c.backend.DeleteOlderThan(ctx, c.opts.now().Add(-maxAge))
}

func (c *Cache[V]) Stats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	coalesced := c.coalesced.Load()

	entries, err := c.backend.Len(ctx)
	if err != nil {
		c.opts.logger.Warn().Err(err).Msg("cache size unavailable")
	}

	st := Stats{
		Name:      c.name,
		Hits:      hits,
		Misses:    misses,
		Coalesced: coalesced,
		Entries:   entries,
		Savings:   float64(hits+coalesced) * c.opts.cost,
	}
	if total := hits + misses + coalesced; total > 0 {
		st.HitRate = float64(hits+coalesced) / float64(total)
	}
	return st
}

// RunJanitor sweeps entries older than maxAge every interval until ctx is done.
func (c *Cache[V]) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	RunJanitor(ctx, interval, c.opts.logger, func(ctx context.Context) (int, error) {
		return c.InvalidateOlderThan(ctx, maxAge)
	})
}

// RunJanitor calls sweep every interval until ctx is done.
func RunJanitor(ctx context.Context, interval time.Duration, logger zerolog.Logger, sweep func(context.Context) (int, error)) {
	if interval <= 0 || sweep == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sweep(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("janitor sweep failed")
				continue
			}
			logger.Debug().Int("removed", removed).Msg("janitor sweep done")
		}
	}
}
