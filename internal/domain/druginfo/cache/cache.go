package cache

import (
	"context"
	"strings"
	"time"

	"medid-server-go/internal/domain/druginfo/model"
)

// Cache stores label lookups keyed by normalised drug name.
type Cache interface {
	Get(ctx context.Context, name string) (model.Label, bool, error)
	Set(ctx context.Context, name string, label model.Label) error
	Delete(ctx context.Context, name string) error
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level cache selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

const defaultTTL = 6 * time.Hour

// Key normalises a drug name so "Advil " and "advil" share an entry.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultTTL
	}
	return ttl
}
