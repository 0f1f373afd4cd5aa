package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"midtown_book/internal/adapters/observability"
	"midtown_book/internal/domain"
)

type Cache struct{ c *redis.Client }

var _ domain.Cache = (*Cache)(nil)

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, keys...).Err()
}

func (r *Cache) DelPrefix(ctx context.Context, prefix string) error {
	var batch []string
	it := r.c.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for it.Next(ctx) {
		batch = append(batch, it.Val())
		if len(batch) == 200 {
			if err := r.Del(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return r.Del(ctx, batch...)
}

// Noop satisfies domain.Cache when no Redis is configured; every read misses.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string, dst any) (bool, error) {
	observability.ObserveCache("noop", "miss")
	return false, nil
}
func (Noop) Set(ctx context.Context, key string, v any, ttlSec int) error { return nil }
func (Noop) Del(ctx context.Context, keys ...string) error               { return nil }
func (Noop) DelPrefix(ctx context.Context, prefix string) error          { return nil }
