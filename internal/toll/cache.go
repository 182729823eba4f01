package toll

import (
	"sync"

	"tollfee/internal/model"
)

// GroupCache stores the charges of one vehicle-day group under its content hash.
type GroupCache interface {
	Get(key string) ([]model.Charge, bool)
	Put(key string, charges []model.Charge)
}

// MemoryCache is a bounded in-process GroupCache. When full it is emptied
// rather than evicting entry by entry.
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	entries map[string][]model.Charge
}

func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = 10000
	}
	return &MemoryCache{max: max, entries: map[string][]model.Charge{}}
}

func (c *MemoryCache) Get(key string) ([]model.Charge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]model.Charge, len(v))
	copy(out, v)
	return out, true
}

func (c *MemoryCache) Put(key string, charges []model.Charge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		c.entries = map[string][]model.Charge{}
	}
	v := make([]model.Charge, len(charges))
	copy(v, charges)
	c.entries[key] = v
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
