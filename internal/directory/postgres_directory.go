package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the directory needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads user profiles from the relational database.
type PostgresDirectory struct {
	db DB
}

// NewPostgresDirectory initializes a directory backed by pgx.
func NewPostgresDirectory(db DB) *PostgresDirectory {
	if db == nil {
		panic("directory: db required")
	}
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, tenant_id, role, first_name, last_name, email, timezone,
			COALESCE(treatment_target, '')
		FROM user_profiles
		WHERE id = $1
	`
	var p Profile
	err := d.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.TenantID,
		&p.Role,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Timezone,
		&p.TreatmentTarget,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("directory: select profile: %w", err)
	}
	return &p, nil
}

func (d *PostgresDirectory) TenantIDForUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	query := `SELECT tenant_id FROM user_profiles WHERE id = $1`
	var tenantID uuid.UUID
	if err := d.db.QueryRow(ctx, query, id).Scan(&tenantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrProfileNotFound
		}
		return uuid.Nil, fmt.Errorf("directory: select tenant: %w", err)
	}
	return tenantID, nil
}
