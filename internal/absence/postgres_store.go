package absence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindwell-health/practice-platform/internal/schedule"
)

// DB is the pgx surface the store needs; pgxmock satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists absences in the absences table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("absence: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	var overlap bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM absences
			WHERE counselor_id = $1 AND resumed_at IS NULL
			  AND start_date <= $3 AND end_date >= $2
		)`, rec.CounselorID, rec.StartDate, rec.EndDate).Scan(&overlap)
	if err != nil {
		return fmt.Errorf("absence: overlap check: %w", err)
	}
	if overlap {
		return ErrAbsenceOverlap
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO absences (id, tenant_id, counselor_id, start_date, end_date, notify_admin)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.TenantID, rec.CounselorID, rec.StartDate, rec.EndDate, rec.NotifyAdmin)
	if err != nil {
		return fmt.Errorf("absence: insert: %w", err)
	}
	return nil
}

const recordColumns = `id, tenant_id, counselor_id, start_date, end_date, notify_admin, resumed_at, created_at`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM absences WHERE id = $1`, id)
	return scanRecord(row)
}

func (s *PostgresStore) ListByCounselor(ctx context.Context, counselorID uuid.UUID) ([]*Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM absences WHERE counselor_id = $1 ORDER BY start_date`, counselorID)
	if err != nil {
		return nil, fmt.Errorf("absence: list by counselor: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) ListExpired(ctx context.Context, asOf time.Time) ([]*Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM absences WHERE resumed_at IS NULL AND end_date < $1 ORDER BY end_date`,
		schedule.DateOnly(asOf))
	if err != nil {
		return nil, fmt.Errorf("absence: list expired: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) MarkResumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE absences SET resumed_at = $2 WHERE id = $1 AND resumed_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("absence: mark resumed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// already resumed by a concurrent sweep; nothing to do
		return nil
	}
	return nil
}

func collectRecords(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("absence: iterate records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.CounselorID, &rec.StartDate,
		&rec.EndDate, &rec.NotifyAdmin, &rec.ResumedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAbsenceNotFound
		}
		return nil, fmt.Errorf("absence: scan record: %w", err)
	}
	return &rec, nil
}
