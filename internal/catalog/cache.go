package catalog

import (
	"context"
	"sync"
	"time"
)

// Cache holds a parsed copy of the catalog between requests. Entries are
// reloaded on miss or after an explicit invalidation; there is no
// background refresh.
type Cache interface {
	Get(ctx context.Context) ([]Product, bool)
	Set(ctx context.Context, products []Product)
	Invalidate(ctx context.Context)
}

// MemoryCache is the in-process Cache used when no Redis address is
// configured.
type MemoryCache struct {
	mu        sync.Mutex
	products  []Product
	fetchedAt time.Time
	ttl       time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl}
}

func (m *MemoryCache) Get(_ context.Context) ([]Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.products == nil {
		return nil, false
	}
	if m.ttl > 0 && time.Since(m.fetchedAt) > m.ttl {
		m.products = nil
		return nil, false
	}
	out := make([]Product, len(m.products))
	copy(out, m.products)
	return out, true
}

func (m *MemoryCache) Set(_ context.Context, products []Product) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = make([]Product, len(products))
	copy(m.products, products)
	m.fetchedAt = time.Now()
}

func (m *MemoryCache) Invalidate(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = nil
}
