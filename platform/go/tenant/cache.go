package tenant

import (
	"context"
	"sync"
	"time"
)

// StatusCache remembers whether a tenant is active so the request path does not hit
// the directory on every call.
//
// Writers that change a tenant's status call Set with the committed value. Readers that
// fill the cache from a directory lookup call SetIfAbsent, so a lookup that raced with a
// status change never overwrites the newer value.
type StatusCache interface {
	Get(ctx context.Context, identifier string) (active bool, found bool, err error)
	Set(ctx context.Context, identifier string, active bool) error
	SetIfAbsent(ctx context.Context, identifier string, active bool) error
	Delete(ctx context.Context, identifier string) error
}

// MemoryStatusCache is a process-local StatusCache with a fixed TTL.
type MemoryStatusCache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]statusItem
}

type statusItem struct {
	active    bool
	expiresAt time.Time
}

// NewMemoryStatusCache builds a cache; a non-positive ttl disables caching.
func NewMemoryStatusCache(ttl time.Duration) *MemoryStatusCache {
	return &MemoryStatusCache{ttl: ttl, now: time.Now, items: make(map[string]statusItem)}
}

func (c *MemoryStatusCache) Get(_ context.Context, identifier string) (bool, bool, error) {
	if c.ttl <= 0 {
		return false, false, nil
	}

	c.mu.RLock()
	item, ok := c.items[identifier]
	c.mu.RUnlock()

	if !ok {
		return false, false, nil
	}
	if c.now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, identifier)
		c.mu.Unlock()
		return false, false, nil
	}
	return item.active, true, nil
}

func (c *MemoryStatusCache) Set(_ context.Context, identifier string, active bool) error {
	if c.ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[identifier] = statusItem{active: active, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryStatusCache) SetIfAbsent(_ context.Context, identifier string, active bool) error {
	if c.ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if item, ok := c.items[identifier]; ok && !now.After(item.expiresAt) {
		return nil
	}
	c.items[identifier] = statusItem{active: active, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *MemoryStatusCache) Delete(_ context.Context, identifier string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, identifier)
	return nil
}

var _ StatusCache = (*MemoryStatusCache)(nil)
