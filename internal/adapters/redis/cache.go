package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"venue_finder/internal/adapters/observability"
	"venue_finder/internal/domain"
)

var _ domain.Cache = (*Cache)(nil)

// Cache is a JSON read-through cache. Calls go through a circuit breaker so an
// unreachable Redis fails fast and callers fall back to the store.
type Cache struct {
	c  *redis.Client
	cb *gobreaker.CircuitBreaker[[]byte]
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(c *redis.Client) *Cache {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state change")
		},
	})
	return &Cache{c: c, cb: cb}
}

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.cb.Execute(func() ([]byte, error) {
		b, err := r.c.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		observability.ObserveCache("redis", "error")
		return false, err
	}
	if v == nil {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.cb.Execute(func() ([]byte, error) {
		return nil, r.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err()
	})
	if err != nil {
		observability.ObserveCache("redis", "error")
		return err
	}
	observability.ObserveCache("redis", "set")
	return nil
}

func (r *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.cb.Execute(func() ([]byte, error) {
		return nil, r.c.Del(ctx, keys...).Err()
	})
	if err != nil {
		observability.ObserveCache("redis", "error")
		return err
	}
	observability.ObserveCache("redis", "del")
	return nil
}
