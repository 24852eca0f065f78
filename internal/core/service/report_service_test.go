package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

type mockPatients struct {
	records []domain.PatientRecord
	err     error
}

func (m mockPatients) ListPatients(ctx context.Context, fiscalYear string) ([]domain.PatientRecord, error) {
	return m.records, m.err
}

func TestInventoryReport(t *testing.T) {
	asl := 10
	catalog := mockCatalog{
		{ID: "1", ItemName: "Paper", Category: domain.CategoryExpendable, FiscalYear: fy, CurrentQuantity: 4, ApprovedStockLevel: &asl},
		{ID: "2", ItemName: "Chair", Category: domain.CategoryNonExpendable, FiscalYear: fy},
	}
	svc := NewReportService(catalog, mockPatients{})

	items, err := svc.InventoryReport(context.Background(), fy)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].QuantityToOrder != 6 {
		t.Errorf("expected one item to order 6, got %+v", items)
	}
}

func TestClinicalReport(t *testing.T) {
	patients := mockPatients{records: []domain.PatientRecord{
		{Sex: "Male", Age: "10", AnimalType: "Dog bite", RegMonth: "08", FiscalYear: fy},
	}}
	svc := NewReportService(mockCatalog{}, patients)

	m, err := svc.ClinicalReport(context.Background(), fy, "08")
	if err != nil {
		t.Fatal(err)
	}
	if m.GrandTotal != 1 {
		t.Errorf("expected 1, got %d", m.GrandTotal)
	}

	svc = NewReportService(mockCatalog{}, mockPatients{err: errors.New("db down")})
	if _, err := svc.ClinicalReport(context.Background(), fy, "08"); err == nil {
		t.Error("expected error to propagate")
	}
}
