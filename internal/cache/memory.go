package cache

import (
	"context"
	"sync"
	"time"
)

const janitorInterval = time.Minute

type item struct {
	value    []byte
	deadline time.Time
}

// MemoryCache keeps catalog responses in process memory. Expired items are
// dropped on read and by a background janitor.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time

	stop context.CancelFunc
}

// NewMemoryCache creates a cache and starts its janitor. Close stops it.
func NewMemoryCache() *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		items: make(map[string]item),
		now:   time.Now,
		stop:  cancel,
	}
	go c.janitor(ctx, janitorInterval)
	return c
}

// Get returns a copy of the value stored under key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.now().Before(it.deadline) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && !c.now().Before(cur.deadline) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a copy of value until ttl elapses.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{value: append([]byte(nil), value...), deadline: c.now().Add(ttl)}

	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}

// Delete evicts key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stop()
	return nil
}

func (c *MemoryCache) janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *MemoryCache) sweepExpired() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if !now.Before(it.deadline) {
			delete(c.items, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
