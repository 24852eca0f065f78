package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/port"
)

// CachedCatalog serves the inventory catalog from a cache and falls back to
// the source on a miss. Cache failures are logged and never fail the read.
type CachedCatalog struct {
	source port.CatalogRepository
	cache  port.CatalogCache
	logger *zap.Logger
}

func NewCachedCatalog(source port.CatalogRepository, cache port.CatalogCache, logger *zap.Logger) *CachedCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCatalog{source: source, cache: cache, logger: logger}
}

func (c *CachedCatalog) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	items, ok, err := c.cache.GetCatalog(ctx)
	if err != nil {
		c.logger.Warn("catalog cache read failed", zap.Error(err))
	}
	if ok {
		return items, nil
	}

	items, err = c.source.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetCatalog(ctx, items); err != nil {
		c.logger.Warn("catalog cache write failed", zap.Error(err))
	}
	return items, nil
}

// RefreshInventory is used after stock changes outside this service, so
// readers do not wait out the cache TTL.
func (c *CachedCatalog) RefreshInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	if err := c.cache.InvalidateCatalog(ctx); err != nil {
		return nil, fmt.Errorf("invalidate catalog: %w", err)
	}
	return c.ListInventory(ctx)
}
