// Package cache stores resolved list orders in Redis so repeated list
// requests against the same snapshot skip filtering and sorting.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "staffbook:view:"

// Store is the id-order cache the list viewer reads through.
type Store interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, ids []string) error
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr. The client is checked with a ping so a bad
// address fails at startup.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (c *Redis) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (c *Redis) Set(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, payload, c.ttl).Err()
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

// Observed wraps a cache and reports every lookup as a hit or a miss.
type Observed struct {
	Next    Store
	Observe func(hit bool)
}

func (o Observed) Get(ctx context.Context, key string) ([]string, bool, error) {
	ids, ok, err := o.Next.Get(ctx, key)
	if err == nil && o.Observe != nil {
		o.Observe(ok)
	}
	return ids, ok, err
}

func (o Observed) Set(ctx context.Context, key string, ids []string) error {
	return o.Next.Set(ctx, key, ids)
}

const rateKeyPrefix = "staffbook:rate:"

// incrWindow counts a hit in a fixed window that starts with the first hit.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// Incr adds one hit to key's current window and returns the hit count and
// the time left in the window. Every instance sharing the Redis database
// shares the counter.
func (c *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindow.Run(ctx, c.client, []string{rateKeyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, errors.New("unexpected rate counter reply")
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
