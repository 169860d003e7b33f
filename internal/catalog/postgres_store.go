package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads the catalog from the relational database.
// Formula gaps and report placements live in JSONB columns; decoding happens
// here at the persistence boundary and nowhere else.
type PostgresStore struct {
	db DB
}

// NewPostgresStore initializes a store backed by pgx.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("catalog: db required")
	}
	return &PostgresStore{db: db}
}

const serviceColumns = `id, tenant_id, code, name, total_price, tax_rate, session_count,
		formula_type, gaps, reports, is_report, is_discharge, is_addon`

func (s *PostgresStore) GetService(ctx context.Context, id uuid.UUID) (*ServiceDefinition, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	return s.scanService(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) GetServiceForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1 AND tenant_id = $2`
	return s.scanService(s.db.QueryRow(ctx, query, id, tenantID))
}

func (s *PostgresStore) GetServiceByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ServiceDefinition, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE tenant_id = $1 AND code = $2`
	return s.scanService(s.db.QueryRow(ctx, query, tenantID, code))
}

func (s *PostgresStore) FindServiceByCodeAnyTenant(ctx context.Context, code string) (*ServiceDefinition, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE code = $1 ORDER BY created_at LIMIT 1`
	return s.scanService(s.db.QueryRow(ctx, query, code))
}

func (s *PostgresStore) GetFeeReference(ctx context.Context, tenantID uuid.UUID) (*FeeReference, error) {
	query := `
		SELECT tenant_id, tax_percent, system_percent, counselor_percent
		FROM fee_references
		WHERE tenant_id = $1
	`
	var ref FeeReference
	err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&ref.TenantID,
		&ref.TaxPercent,
		&ref.SystemPercent,
		&ref.CounselorPercent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeeReferenceNotFound
		}
		return nil, fmt.Errorf("catalog: select fee reference: %w", err)
	}
	return &ref, nil
}

func (s *PostgresStore) scanService(row pgx.Row) (*ServiceDefinition, error) {
	var (
		svc        ServiceDefinition
		price      decimal.Decimal
		gapsRaw    []byte
		reportsRaw []byte
	)
	err := row.Scan(
		&svc.ID,
		&svc.TenantID,
		&svc.Code,
		&svc.Name,
		&price,
		&svc.TaxRate,
		&svc.SessionCount,
		&svc.FormulaType,
		&gapsRaw,
		&reportsRaw,
		&svc.IsReport,
		&svc.IsDischarge,
		&svc.IsAddon,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: select service: %w", err)
	}
	svc.TotalPrice = price

	if len(gapsRaw) > 0 {
		if err := json.Unmarshal(gapsRaw, &svc.Gaps); err != nil {
			return nil, fmt.Errorf("catalog: decode gaps: %w", err)
		}
	}
	if len(reportsRaw) > 0 {
		if err := json.Unmarshal(reportsRaw, &svc.Reports); err != nil {
			return nil, fmt.Errorf("catalog: decode report placements: %w", err)
		}
	}
	return &svc, nil
}
