package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryCache implements Cache with an in-process map. Used for testing and
// for running without Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	price     decimal.Decimal
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	e, ok := c.entries[priceKey(symbol)]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		return decimal.Decimal{}, false
	}
	return e.price, true
}

func (c *MemoryCache) Set(_ context.Context, symbol string, price decimal.Decimal, ttl time.Duration) {
	c.mu.Lock()
	c.entries[priceKey(symbol)] = memoryEntry{price: price, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// SetClock overrides the time source. Test hook.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
