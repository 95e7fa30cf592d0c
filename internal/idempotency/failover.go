package idempotency

import (
	"context"
	"sync/atomic"
	"time"

	"gout/internal/domain"
	"gout/internal/models"

	"github.com/rs/zerolog"
)

// FailoverCache serves from the primary cache until it errors, then
// drops to the fallback and probes the primary again after a minute.
// Losing the cache is safe: a stale or missing record only costs one
// trip to the store's dedup columns.
type FailoverCache struct {
	primary  domain.ReplayCache
	fallback domain.ReplayCache
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// unix nanos of the last failed primary probe; concurrent requests
	// read and advance it without coordination
	lastCheck atomic.Int64
}

func NewFailoverCache(primary, fallback domain.ReplayCache, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{primary: primary, fallback: fallback, logger: logger}
}

func (c *FailoverCache) Get(ctx context.Context, key string) (*models.ReplayRecord, error) {
	if !c.isDown.Load() {
		record, err := c.primary.Get(ctx, key)
		if err == nil {
			return record, nil
		}
		c.markDown(err)
	}

	if c.isDown.Load() && time.Now().UnixNano()-c.lastCheck.Load() > int64(time.Minute) {
		record, err := c.primary.Get(ctx, key)
		if err == nil {
			c.isDown.Store(false)
			return record, nil
		}
		c.lastCheck.Store(time.Now().UnixNano())
	}

	return c.fallback.Get(ctx, key)
}

func (c *FailoverCache) Set(ctx context.Context, record *models.ReplayRecord) error {
	if !c.isDown.Load() {
		err := c.primary.Set(ctx, record)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.Set(ctx, record)
}

func (c *FailoverCache) Delete(ctx context.Context, key string) error {
	if !c.isDown.Load() {
		err := c.primary.Delete(ctx, key)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.Delete(ctx, key)
}

func (c *FailoverCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary replay cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(time.Now().UnixNano())
}
