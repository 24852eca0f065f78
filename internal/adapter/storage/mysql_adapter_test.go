package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/demanddesk?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := NewMySQLAdapter(db).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

// testFiscalYear keeps rows of concurrent test runs apart.
func testFiscalYear() string {
	return "t" + time.Now().Format("150405.000")
}

func newRequest(fy string, formNo int) domain.DemandRequest {
	now := time.Now().Truncate(time.Millisecond)
	return domain.DemandRequest{
		ID:         uuid.NewString(),
		FiscalYear: fy,
		FormNo:     formNo,
		Date:       "2081/08/10",
		Status:     domain.StatusPending,
		Items:      []domain.DemandLineItem{{ID: 1, Name: "Paper", Unit: "packet", Quantity: "5"}},
		DemandBy: domain.RequesterBlock{
			Signature: domain.Signature{Name: "Sita Sharma", Date: "2081/08/10"},
			Purpose:   "stationery",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMySQLSave_InsertAndGet(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	fy := testFiscalYear()
	defer db.ExecContext(ctx, `DELETE FROM demand_requests WHERE fiscal_year = ?`, fy)

	req := newRequest(fy, 1)
	saved, err := adapter.Save(ctx, req, 0)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1, got %d", saved.Version)
	}

	got, err := adapter.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected request, got nil")
	}
	if got.FormNo != 1 || got.DemandBy.Purpose != "stationery" || len(got.Items) != 1 {
		t.Errorf("unexpected request %+v", got)
	}

	list, err := adapter.ListByFiscalYear(ctx, fy)
	if err != nil {
		t.Fatalf("ListByFiscalYear failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 request, got %d", len(list))
	}
}

func TestMySQLGetByID_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	got, err := NewMySQLAdapter(db).GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent request")
	}
}

func TestMySQLSave_DuplicateFormNumber(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	fy := testFiscalYear()
	defer db.ExecContext(ctx, `DELETE FROM demand_requests WHERE fiscal_year = ?`, fy)

	if _, err := adapter.Save(ctx, newRequest(fy, 1), 0); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	_, err := adapter.Save(ctx, newRequest(fy, 1), 0)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got: %v", err)
	}
}

func TestMySQLSave_OptimisticLock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	fy := testFiscalYear()
	defer db.ExecContext(ctx, `DELETE FROM demand_requests WHERE fiscal_year = ?`, fy)

	saved, err := adapter.Save(ctx, newRequest(fy, 1), 0)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// Update with correct version
	saved.Status = domain.StatusVerified
	updated, err := adapter.Save(ctx, saved, saved.Version)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}

	// Try update with stale version
	_, err = adapter.Save(ctx, saved, 1)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got: %v", err)
	}

	got, _ := adapter.GetByID(ctx, saved.ID)
	if got.Status != domain.StatusVerified || got.Version != 2 {
		t.Errorf("unexpected stored request %s v%d", got.Status, got.Version)
	}
}

func TestMySQLListInventory(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	id := uuid.NewString()

	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, item_name, unit, item_type, fiscal_year, current_quantity, approved_stock_level)
		VALUES (?, 'Test Gauze', 'roll', 'Expendable', '2081/082', 3, 10)`, id)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)

	items, err := adapter.ListInventory(ctx)
	if err != nil {
		t.Fatalf("ListInventory failed: %v", err)
	}
	for _, item := range items {
		if item.ID != id {
			continue
		}
		if item.Category != domain.CategoryExpendable || item.ApprovedStockLevel == nil || *item.ApprovedStockLevel != 10 {
			t.Errorf("unexpected item %+v", item)
		}
		if item.EmergencyOrderPoint != nil {
			t.Error("expected NULL emergency order point to stay nil")
		}
		return
	}
	t.Error("seeded item not found")
}

func TestMySQLListPatients(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	fy := testFiscalYear()

	_, err := db.ExecContext(ctx, `
		INSERT INTO rabies_patients (id, fiscal_year, reg_month, sex, age, animal_type)
		VALUES (?, ?, '08', 'Male', '10', 'Dog bite')`, uuid.NewString(), fy)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM rabies_patients WHERE fiscal_year = ?`, fy)

	records, err := adapter.ListPatients(ctx, fy)
	if err != nil {
		t.Fatalf("ListPatients failed: %v", err)
	}
	if len(records) != 1 || records[0].AnimalType != "Dog bite" {
		t.Errorf("unexpected records %+v", records)
	}
}
