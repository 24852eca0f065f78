package port

import (
	"context"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

type RequestRepository interface {
	// ListByFiscalYear returns every demand request of the fiscal year
	ListByFiscalYear(ctx context.Context, fiscalYear string) ([]domain.DemandRequest, error)

	// GetByID returns nil, nil when the request does not exist
	GetByID(ctx context.Context, id string) (*domain.DemandRequest, error)

	// Save writes the request if its stored version still equals
	// expectedVersion (0 for a new request) and returns the stored copy.
	// A stale version or a taken form number yields domain.ErrConflict.
	Save(ctx context.Context, req domain.DemandRequest, expectedVersion int) (domain.DemandRequest, error)
}

type CatalogRepository interface {
	// ListInventory returns the whole inventory catalog
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
}

type PatientRepository interface {
	// ListPatients returns the rabies registrations of a fiscal year
	ListPatients(ctx context.Context, fiscalYear string) ([]domain.PatientRecord, error)
}
