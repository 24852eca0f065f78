package port

import (
	"context"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

type FormNumberReserver interface {
	// ReserveFormNumber atomically claims a form number, returns false if already taken
	ReserveFormNumber(ctx context.Context, fiscalYear string, formNo int) (bool, error)

	// ReleaseFormNumber frees a claim whose save failed
	ReleaseFormNumber(ctx context.Context, fiscalYear string, formNo int) error
}

type CatalogCache interface {
	// GetCatalog returns ok=false on a cache miss
	GetCatalog(ctx context.Context) (items []domain.InventoryItem, ok bool, err error)

	SetCatalog(ctx context.Context, items []domain.InventoryItem) error

	InvalidateCatalog(ctx context.Context) error
}

// CatalogRefresher is implemented by catalog sources that keep a copy which
// can go stale.
type CatalogRefresher interface {
	// RefreshInventory drops the cached copy and reloads it from the source
	RefreshInventory(ctx context.Context) ([]domain.InventoryItem, error)
}
