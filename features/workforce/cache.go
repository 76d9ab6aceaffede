package workforce

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const poolKey = "workforce:pool"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]Worker, bool, error) {
	val, err := c.client.Get(ctx, poolKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var pool []Worker
	if err := json.Unmarshal(val, &pool); err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

func (c *RedisCache) Set(ctx context.Context, pool []Worker) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, poolKey, data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, poolKey).Err()
}
