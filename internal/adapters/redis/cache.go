package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"seatview/internal/adapters/observability"
)

// DefaultMaxValueBytes caps one encoded cache entry.
const DefaultMaxValueBytes = 1 << 20

// ErrValueTooLarge is returned by Set when the encoded value exceeds the cap.
// Nothing is written in that case.
var ErrValueTooLarge = errors.New("cache value too large")

// Cache stores read models as JSON under plain string keys.
type Cache struct {
	c        *redis.Client
	maxBytes int
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		c:        redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		maxBytes: DefaultMaxValueBytes,
	}
}

// WithMaxValueBytes changes the per-entry cap; n <= 0 keeps the current one.
func (r *Cache) WithMaxValueBytes(n int) *Cache {
	if n > 0 {
		r.maxBytes = n
	}
	return r
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(v, dst); err != nil {
		// A value we cannot decode is as good as absent.
		observability.ObserveCache("redis", "miss")
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	observability.ObserveCache("redis", "hit")
	return true, nil
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if len(b) > r.maxBytes {
		observability.ObserveCache("redis", "skip")
		return fmt.Errorf("%s: %d bytes: %w", key, len(b), ErrValueTooLarge)
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, key).Err()
}
