package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/demand-desk/internal/core/domain"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY, raised by the (fiscal_year, form_no) key.
const mysqlDuplicateEntry = 1062

//go:embed schema.sql
var schemaSQL string

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) ListByFiscalYear(ctx context.Context, fiscalYear string) ([]domain.DemandRequest, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT payload, version, created_at, updated_at
		FROM demand_requests WHERE fiscal_year = ?
		ORDER BY form_no`, fiscalYear,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []domain.DemandRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) GetByID(ctx context.Context, id string) (*domain.DemandRequest, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT payload, version, created_at, updated_at
		FROM demand_requests WHERE id = ?`, id,
	)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Save inserts a new request (expectedVersion 0) or updates a stored one only
// while its version is unchanged.
func (m *MySQLAdapter) Save(ctx context.Context, req domain.DemandRequest, expectedVersion int) (domain.DemandRequest, error) {
	req.Version = expectedVersion + 1
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.DemandRequest{}, fmt.Errorf("encode request: %w", err)
	}

	if expectedVersion == 0 {
		_, err = m.db.ExecContext(ctx, `
			INSERT INTO demand_requests
				(id, fiscal_year, form_no, status, requested_by, payload, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, req.FiscalYear, req.FormNo, req.Status, req.DemandBy.Name, payload,
			req.Version, req.CreatedAt, req.UpdatedAt,
		)
		if isDuplicateEntry(err) {
			return domain.DemandRequest{}, domain.ErrConflict
		}
		if err != nil {
			return domain.DemandRequest{}, fmt.Errorf("insert request: %w", err)
		}
		return req, nil
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE demand_requests
		SET status = ?, requested_by = ?, payload = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		req.Status, req.DemandBy.Name, payload, req.UpdatedAt, req.ID, expectedVersion,
	)
	if err != nil {
		return domain.DemandRequest{}, fmt.Errorf("update request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.DemandRequest{}, domain.ErrConflict
	}
	return req, nil
}

func (m *MySQLAdapter) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, item_name, unit, item_type, fiscal_year, current_quantity,
			approved_stock_level, emergency_order_point, specification
		FROM inventory_items ORDER BY item_name`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryItem
	for rows.Next() {
		var (
			item     domain.InventoryItem
			asl, eop sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.ItemName, &item.Unit, &item.Category, &item.FiscalYear,
			&item.CurrentQuantity, &asl, &eop, &item.Specification); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		item.ApprovedStockLevel = nullableInt(asl)
		item.EmergencyOrderPoint = nullableInt(eop)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListPatients(ctx context.Context, fiscalYear string) ([]domain.PatientRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, fiscal_year, reg_month, reg_date, name, sex, age, animal_type
		FROM rabies_patients WHERE fiscal_year = ?`, fiscalYear,
	)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var out []domain.PatientRecord
	for rows.Next() {
		var p domain.PatientRecord
		if err := rows.Scan(&p.ID, &p.FiscalYear, &p.RegMonth, &p.RegDate, &p.Name, &p.Sex, &p.Age, &p.AnimalType); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (domain.DemandRequest, error) {
	var (
		req                  domain.DemandRequest
		payload              []byte
		version              int
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&payload, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return req, err
		}
		return req, fmt.Errorf("scan request: %w", err)
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	req.Version = version
	req.CreatedAt, req.UpdatedAt = createdAt, updatedAt
	return req, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
