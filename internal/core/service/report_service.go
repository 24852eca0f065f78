package service

import (
	"context"
	"fmt"

	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/reporting"
	"github.com/rl1809/demand-desk/internal/port"
)

type ReportService struct {
	catalog  port.CatalogRepository
	patients port.PatientRepository
}

func NewReportService(catalog port.CatalogRepository, patients port.PatientRepository) *ReportService {
	return &ReportService{catalog: catalog, patients: patients}
}

// InventoryReport is the monthly जिन्सी report: expendable stock of the
// fiscal year with reorder quantities.
func (s *ReportService) InventoryReport(ctx context.Context, fiscalYear string) ([]domain.ReconciledItem, error) {
	catalog, err := s.catalog.ListInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return reporting.ReconcileInventory(catalog, fiscalYear), nil
}

func (s *ReportService) ClinicalReport(ctx context.Context, fiscalYear, month string) (reporting.Matrix, error) {
	records, err := s.patients.ListPatients(ctx, fiscalYear)
	if err != nil {
		return reporting.Matrix{}, fmt.Errorf("load patients: %w", err)
	}
	return reporting.AggregateClinical(records, fiscalYear, month), nil
}
