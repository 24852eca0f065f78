package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

// MemoryStore keeps requests, catalog and patients in process. It enforces
// the same version check and (fiscal year, form number) uniqueness as MySQL.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]domain.DemandRequest
	inventory []domain.InventoryItem
	patients  []domain.PatientRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]domain.DemandRequest)}
}

func (m *MemoryStore) SeedInventory(items ...domain.InventoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = append(m.inventory, items...)
}

func (m *MemoryStore) SeedPatients(records ...domain.PatientRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients = append(m.patients, records...)
}

func (m *MemoryStore) ListByFiscalYear(ctx context.Context, fiscalYear string) ([]domain.DemandRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.DemandRequest
	for _, r := range m.requests {
		if r.FiscalYear == fiscalYear {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormNo < out[j].FormNo })
	return out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.DemandRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

func (m *MemoryStore) Save(ctx context.Context, req domain.DemandRequest, expectedVersion int) (domain.DemandRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.requests[req.ID]
	switch {
	case expectedVersion == 0 && exists:
		return domain.DemandRequest{}, domain.ErrConflict
	case expectedVersion != 0 && (!exists || current.Version != expectedVersion):
		return domain.DemandRequest{}, domain.ErrConflict
	}

	for id, other := range m.requests {
		if id != req.ID && other.FiscalYear == req.FiscalYear && other.FormNo == req.FormNo {
			return domain.DemandRequest{}, fmt.Errorf("form %d of %s: %w", req.FormNo, req.FiscalYear, domain.ErrConflict)
		}
	}

	req.Version = expectedVersion + 1
	m.requests[req.ID] = req.Clone()
	return req.Clone(), nil
}

func (m *MemoryStore) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.InventoryItem, len(m.inventory))
	copy(out, m.inventory)
	return out, nil
}

func (m *MemoryStore) ListPatients(ctx context.Context, fiscalYear string) ([]domain.PatientRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.PatientRecord
	for _, p := range m.patients {
		if p.FiscalYear == fiscalYear {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryReserver is the in-process form number reserver used without Redis.
type MemoryReserver struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func NewMemoryReserver() *MemoryReserver {
	return &MemoryReserver{taken: make(map[string]struct{})}
}

func (r *MemoryReserver) ReserveFormNumber(ctx context.Context, fiscalYear string, formNo int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := formNoKey(fiscalYear, formNo)
	if _, ok := r.taken[key]; ok {
		return false, nil
	}
	r.taken[key] = struct{}{}
	return true, nil
}

func (r *MemoryReserver) ReleaseFormNumber(ctx context.Context, fiscalYear string, formNo int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.taken, formNoKey(fiscalYear, formNo))
	return nil
}
