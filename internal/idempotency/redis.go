package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gout/internal/config"
	"gout/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared replay cache. Records are JSON values under
// a prefixed key with a TTL; expired entries simply fall through to
// the durable dedup columns in the store.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(k string) string {
	return fmt.Sprintf("%s:replay:%s", c.prefix, k)
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.ReplayRecord, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replay record from redis: %w", err)
	}

	var record models.ReplayRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal replay record: %w", err)
	}
	return &record, nil
}

func (c *RedisCache) Set(ctx context.Context, record *models.ReplayRecord) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal replay record: %w", err)
	}
	if err := c.client.Set(ctx, c.key(record.Key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set replay record in redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete replay record from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
