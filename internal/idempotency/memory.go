package idempotency

import (
	"context"
	"sync"
	"time"

	"gout/internal/models"
)

// MemoryCache is the in-process fallback replay cache. Entries expire
// lazily on read.
type MemoryCache struct {
	records sync.Map
	ttl     time.Duration
}

type memoryEntry struct {
	record    *models.ReplayRecord
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*models.ReplayRecord, error) {
	val, ok := c.records.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.records.Delete(key)
		return nil, nil
	}
	return entry.record, nil
}

func (c *MemoryCache) Set(ctx context.Context, record *models.ReplayRecord) error {
	c.records.Store(record.Key, memoryEntry{
		record:    record,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.records.Delete(key)
	return nil
}
