package cache

import (
	"context"
	"sync"
	"time"

	"medid-server-go/internal/domain/druginfo/model"
)

type memoryCache struct {
	items       map[string]model.Entry
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
	hits        int64
	misses      int64
}

// NewMemory builds an in-process label cache with a background sweeper.
func NewMemory(cfg Config) Cache {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	c := &memoryCache{
		items:       make(map[string]model.Entry),
		ttl:         ttlOrDefault(cfg.TTL),
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go c.gcLoop()
	return c
}

func (c *memoryCache) gcLoop() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = c.CleanupExpired(context.Background())
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) Get(_ context.Context, name string) (model.Label, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.items[Key(name)]
	if !ok || entry.Expired(time.Now()) {
		c.misses++
		return model.Label{}, false, nil
	}
	c.hits++
	return entry.Label, true, nil
}

func (c *memoryCache) Set(_ context.Context, name string, label model.Label) error {
	now := time.Now()
	key := Key(name)
	c.mutex.Lock()
	c.items[key] = model.Entry{Name: key, Label: label, CreatedAt: now, ExpiresAt: now.Add(c.ttl)}
	c.mutex.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, name string) error {
	c.mutex.Lock()
	delete(c.items, Key(name))
	c.mutex.Unlock()
	return nil
}

func (c *memoryCache) CleanupExpired(_ context.Context) error {
	now := time.Now()
	c.mutex.Lock()
	for key, entry := range c.items {
		if entry.Expired(now) {
			delete(c.items, key)
		}
	}
	c.mutex.Unlock()
	return nil
}

func (c *memoryCache) Stats(_ context.Context) (map[string]any, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return map[string]any{
		"type":   "memory",
		"total":  len(c.items),
		"hits":   c.hits,
		"misses": c.misses,
		"ttl":    int(c.ttl.Seconds()),
	}, nil
}

func (c *memoryCache) Close(context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}
