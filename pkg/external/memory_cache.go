package external

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ingrescan-health-server/internal/domain"
)

// MemoryProductCache is an in-process LRU product cache with per-entry TTL.
type MemoryProductCache struct {
	lru *expirable.LRU[string, *domain.ProductRecord]
}

// NewMemoryProductCache creates a cache holding at most size records for ttl.
func NewMemoryProductCache(size int, ttl time.Duration) *MemoryProductCache {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryProductCache{
		lru: expirable.NewLRU[string, *domain.ProductRecord](size, nil, ttl),
	}
}

// Get implements domain.ProductCache
func (c *MemoryProductCache) Get(_ context.Context, barcode string) (*domain.ProductRecord, bool) {
	return c.lru.Get(barcode)
}

// Set implements domain.ProductCache
func (c *MemoryProductCache) Set(_ context.Context, barcode string, product *domain.ProductRecord) error {
	if product != nil {
		c.lru.Add(barcode, product)
	}
	return nil
}

// Invalidate removes a cached product.
func (c *MemoryProductCache) Invalidate(_ context.Context, barcode string) error {
	c.lru.Remove(barcode)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryProductCache) Len() int {
	return c.lru.Len()
}
