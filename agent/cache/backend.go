package cache

import (
	"context"
	"time"
)

// Entry is a cached value stamped with the time it was inserted.
type Entry[V any] struct {
	Value      V         `json:"v"`
	InsertedAt time.Time `json:"t"`
}

// Fresh reports whether the entry is still inside ttl at now.
func (e Entry[V]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.InsertedAt) < ttl
}

// Backend stores entries for a single Cache. Implementations must be safe for
// concurrent use.
type Backend[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, entry Entry[V]) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}
