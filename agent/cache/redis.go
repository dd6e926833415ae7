package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRedisKeyPrefix = "aiflow:cache:"
	scanBatchSize         = 256
)

// deleteUnchanged removes KEYS[i] only while it still holds ARGV[i], so an entry
// rewritten after the sweep read it survives.
var deleteUnchanged = redis.NewScript(`
local removed = 0
for i, key in ipairs(KEYS) do
	if redis.call("GET", key) == ARGV[i] then
		removed = removed + redis.call("DEL", key)
	end
end
return removed
`)

// RedisBackend keeps entries as JSON envelopes under "<prefix><name>:<key>". Entries
// carry no Redis expiry; staleness is decided by the owning Cache and removed by the
// janitor sweep.
type RedisBackend[V any] struct {
	client redis.UniversalClient
	prefix string

	// afterRead runs between the sweep's read and delete; tests use it to race a Set.
	afterRead func(keys []string)
}

type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix string
}

func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			o.prefix = trimmed
		}
	}
}

func NewRedisBackend[V any](client redis.UniversalClient, name string, opts ...RedisOption) (*RedisBackend[V], error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("cache name is required")
	}

	o := redisOptions{prefix: defaultRedisKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &RedisBackend[V]{
		client: client,
		prefix: o.prefix + name + ":",
	}, nil
}

func (r *RedisBackend[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry[V]{}, false, nil
	}
	if err != nil {
		return Entry[V]{}, false, fmt.Errorf("redis get: %w", err)
	}

	var e Entry[V]
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry[V]{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, true, nil
}

func (r *RedisBackend[V]) Set(ctx context.Context, key string, entry Entry[V]) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisBackend[V]) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	err := r.scan(ctx, func(keys []string) error {
		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}

		stale := make([]string, 0, len(keys))
		seen := make([]any, 0, len(keys))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var e Entry[json.RawMessage]
			if err := json.Unmarshal([]byte(s), &e); err != nil || e.InsertedAt.Before(cutoff) {
				stale = append(stale, keys[i])
				seen = append(seen, s)
			}
		}
		if len(stale) == 0 {
			return nil
		}
		if r.afterRead != nil {
			r.afterRead(stale)
		}
		n, err := deleteUnchanged.Run(ctx, r.client, stale, seen...).Int()
		if err != nil {
			return fmt.Errorf("redis delete stale: %w", err)
		}
		removed += n
		return nil
	})
	return removed, err
}

func (r *RedisBackend[V]) Len(ctx context.Context) (int, error) {
	count := 0
	err := r.scan(ctx, func(keys []string) error {
		count += len(keys)
		return nil
	})
	return count, err
}

func (r *RedisBackend[V]) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
