package forms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the sources need.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresServiceSource reads service-keyed rules from form_rules.
type PostgresServiceSource struct {
	db DB
}

// NewPostgresServiceSource initializes the service-keyed rule source.
func NewPostgresServiceSource(db DB) *PostgresServiceSource {
	if db == nil {
		panic("forms: db required")
	}
	return &PostgresServiceSource{db: db}
}

func (s *PostgresServiceSource) RulesFor(ctx context.Context, q Query) ([]Rule, error) {
	query := `
		SELECT form_id, kind, positions, stride, symbol
		FROM form_rules
		WHERE tenant_id = $1 AND service_id = $2
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, q.TenantID, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("forms: select service rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// PostgresTargetSource reads treatment-target-keyed rules from form_rules.
type PostgresTargetSource struct {
	db DB
}

// NewPostgresTargetSource initializes the target-keyed rule source.
func NewPostgresTargetSource(db DB) *PostgresTargetSource {
	if db == nil {
		panic("forms: db required")
	}
	return &PostgresTargetSource{db: db}
}

func (s *PostgresTargetSource) RulesFor(ctx context.Context, q Query) ([]Rule, error) {
	if q.TreatmentTarget == "" {
		return nil, nil
	}
	query := `
		SELECT form_id, kind, positions, stride, symbol
		FROM form_rules
		WHERE tenant_id = $1 AND treatment_target = $2
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, q.TenantID, q.TreatmentTarget)
	if err != nil {
		return nil, fmt.Errorf("forms: select target rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// scanRules decodes rule rows; positions travel as a JSONB array and are
// decoded only here, at the persistence boundary.
func scanRules(rows pgx.Rows) ([]Rule, error) {
	var rules []Rule
	for rows.Next() {
		var (
			rule         Rule
			positionsRaw []byte
		)
		if err := rows.Scan(&rule.FormID, &rule.Kind, &positionsRaw, &rule.Stride, &rule.Symbol); err != nil {
			return nil, fmt.Errorf("forms: scan rule: %w", err)
		}
		if len(positionsRaw) > 0 {
			if err := json.Unmarshal(positionsRaw, &rule.Positions); err != nil {
				return nil, fmt.Errorf("forms: decode positions: %w", err)
			}
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("forms: iterate rules: %w", err)
	}
	return rules, nil
}
