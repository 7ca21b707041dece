package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"device-layout/internal/domain"
)

// RedisCache stores the preset list under one key, shared by every dashboard
// instance pointed at the same Redis.
type RedisCache struct {
	client *redis.Client
	key    string
}

func NewRedisConnection(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return rdb, nil
}

func NewRedisCache(client *redis.Client, key string) *RedisCache {
	return &RedisCache{client: client, key: key}
}

func (c *RedisCache) Name() string {
	return "redis"
}

func (c *RedisCache) Load(ctx context.Context) ([]domain.Preset, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading preset cache: %w", err)
	}
	return decode(data)
}

func (c *RedisCache) Store(ctx context.Context, presets []domain.Preset) error {
	data, err := encode(presets)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing preset cache: %w", err)
	}
	return nil
}
