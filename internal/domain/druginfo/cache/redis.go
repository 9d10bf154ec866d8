package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"medid-server-go/internal/domain/druginfo/model"
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed label cache shared between instances.
func NewRedis(cfg Config) (Cache, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "medid:druglabel:"
	}
	return &redisCache{
		client: client,
		ttl:    ttlOrDefault(cfg.TTL),
		prefix: prefix,
	}, nil
}

func (c *redisCache) key(name string) string {
	return c.prefix + Key(name)
}

func (c *redisCache) Get(ctx context.Context, name string) (model.Label, bool, error) {
	raw, err := c.client.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Label{}, false, nil
	}
	if err != nil {
		return model.Label{}, false, err
	}
	var label model.Label
	if err := sonic.Unmarshal(raw, &label); err != nil {
		_ = c.Delete(ctx, name)
		return model.Label{}, false, fmt.Errorf("decode cached label: %w", err)
	}
	return label, true, nil
}

func (c *redisCache) Set(ctx context.Context, name string, label model.Label) error {
	data, err := sonic.Marshal(label)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(name), data, c.ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, name string) error {
	return c.client.Del(ctx, c.key(name)).Err()
}

func (c *redisCache) CleanupExpired(context.Context) error {
	// Redis handles expiration via TTL.
	return nil
}

func (c *redisCache) Stats(ctx context.Context) (map[string]any, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		total += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	return map[string]any{
		"type":  "redis",
		"total": total,
		"ttl":   int(c.ttl.Seconds()),
	}, nil
}

func (c *redisCache) Close(context.Context) error {
	return c.client.Close()
}
