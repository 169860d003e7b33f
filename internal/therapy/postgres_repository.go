package therapy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindwell-health/practice-platform/internal/collision"
	"github.com/mindwell-health/practice-platform/internal/schedule"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores therapy requests and sessions in the relational
// database. Mutations of one counselor's calendar serialize on a per-counselor
// advisory lock so the collision re-check inside a guard sees every committed
// competing write before its own insert lands.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("therapy: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const lockQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`

func (r *PostgresRepository) CreateRequestWithSessions(ctx context.Context, req *TherapyRequest, sessions []*Session, guard func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("therapy: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, lockQuery, req.CounselorID); err != nil {
		return fmt.Errorf("therapy: counselor lock: %w", err)
	}
	if guard != nil {
		if err := guard(ctx); err != nil {
			return err
		}
	}

	insertRequest := `
		INSERT INTO therapy_requests
			(id, tenant_id, counselor_id, client_id, service_id, status,
			start_date, start_minute, format, treatment_target, cancel_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.Exec(ctx, insertRequest,
		req.ID, req.TenantID, req.CounselorID, req.ClientID, req.ServiceID,
		req.Status, req.StartDate, int(req.StartTime), req.Format,
		req.TreatmentTarget, req.CancelToken,
	); err != nil {
		return fmt.Errorf("therapy: insert request: %w", err)
	}

	insertSession := `
		INSERT INTO sessions
			(id, request_id, tenant_id, counselor_id, service_id, position,
			session_date, start_minute, format, status, is_report, is_discharge,
			is_additional, price, tax, counselor_amount, system_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	for _, s := range sessions {
		if _, err := tx.Exec(ctx, insertSession,
			s.ID, s.RequestID, s.TenantID, s.CounselorID, s.ServiceID, s.Position,
			s.Date, int(s.StartTime), s.Format, s.Status, s.IsReport, s.IsDischarge,
			s.IsAdditional, s.Price, s.Tax, s.CounselorAmount, s.SystemAmount,
		); err != nil {
			return fmt.Errorf("therapy: insert session %d: %w", s.Position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("therapy: commit create: %w", err)
	}
	return nil
}

const requestColumns = `id, tenant_id, counselor_id, client_id, service_id, status,
		start_date, start_minute, format, COALESCE(treatment_target, ''), cancel_token,
		created_at, updated_at`

func (r *PostgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*TherapyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM therapy_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) ListRequestsByCounselor(ctx context.Context, counselorID uuid.UUID, status RequestStatus) ([]*TherapyRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM therapy_requests
		WHERE counselor_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, counselorID, string(status))
	if err != nil {
		return nil, fmt.Errorf("therapy: list requests: %w", err)
	}
	defer rows.Close()

	var out []*TherapyRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("therapy: iterate requests: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE therapy_requests SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("therapy: update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("therapy: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM session_forms WHERE session_id IN (SELECT id FROM sessions WHERE request_id = $1)`, id); err != nil {
		return fmt.Errorf("therapy: delete session forms: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE request_id = $1`, id); err != nil {
		return fmt.Errorf("therapy: delete sessions: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM therapy_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("therapy: delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return tx.Commit(ctx)
}

const sessionColumns = `id, request_id, tenant_id, counselor_id, service_id, position,
		session_date, start_minute, format, status, is_report, is_discharge, is_additional,
		price, tax, counselor_amount, system_amount, created_at, updated_at`

func (r *PostgresRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) ListSessions(ctx context.Context, requestID uuid.UUID) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE request_id = $1
		ORDER BY position, is_report`
	return r.querySessions(ctx, query, requestID)
}

func (r *PostgresRepository) ListCounselorSessions(ctx context.Context, counselorID uuid.UUID, from, to time.Time) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE counselor_id = $1 AND session_date BETWEEN $2 AND $3
		ORDER BY session_date, start_minute`
	return r.querySessions(ctx, query, counselorID, from, to)
}

func (r *PostgresRepository) UpdateSession(ctx context.Context, s *Session, guard func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("therapy: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, lockQuery, s.CounselorID); err != nil {
		return fmt.Errorf("therapy: counselor lock: %w", err)
	}
	if guard != nil {
		if err := guard(ctx); err != nil {
			return err
		}
	}

	query := `
		UPDATE sessions
		SET session_date = $2, start_minute = $3, format = $4, status = $5, updated_at = now()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, s.ID, s.Date, int(s.StartTime), s.Format, s.Status)
	if err != nil {
		return fmt.Errorf("therapy: update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) RescheduleSessions(ctx context.Context, requestID uuid.UUID, updates []SessionDateUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("therapy: begin reschedule: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, u := range updates {
		tag, err := tx.Exec(ctx,
			`UPDATE sessions SET session_date = $2, updated_at = now() WHERE id = $1 AND request_id = $3`,
			u.SessionID, schedule.DateOnly(u.Date), requestID)
		if err != nil {
			return fmt.Errorf("therapy: reschedule session %s: %w", u.SessionID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrSessionNotFound
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) AttachForms(ctx context.Context, attachments map[uuid.UUID][]uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("therapy: begin attach forms: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for sessionID, formIDs := range attachments {
		for _, formID := range formIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO session_forms (session_id, form_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				sessionID, formID); err != nil {
				return fmt.Errorf("therapy: attach form %s: %w", formID, err)
			}
		}
	}
	return tx.Commit(ctx)
}

// ActiveSlots implements collision.SlotSource. The filter matches
// slotConflictable plus the ongoing-request scope.
func (r *PostgresRepository) ActiveSlots(ctx context.Context, counselorID uuid.UUID, date time.Time) ([]collision.BookedSlot, error) {
	query := `
		SELECT s.id, s.request_id, s.start_minute
		FROM sessions s
		JOIN therapy_requests tr ON tr.id = s.request_id
		WHERE s.counselor_id = $1
		  AND s.session_date = $2
		  AND s.is_report = false
		  AND s.status NOT IN ('discharged', 'inactive', 'cancelled')
		  AND tr.status = 'ongoing'
	`
	rows, err := r.pool.Query(ctx, query, counselorID, schedule.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("therapy: select active slots: %w", err)
	}
	defer rows.Close()

	var out []collision.BookedSlot
	for rows.Next() {
		var slot collision.BookedSlot
		if err := rows.Scan(&slot.SessionID, &slot.RequestID, &slot.StartMinute); err != nil {
			return nil, fmt.Errorf("therapy: scan slot: %w", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("therapy: iterate slots: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) querySessions(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("therapy: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("therapy: iterate sessions: %w", err)
	}
	return out, nil
}

func scanRequest(row pgx.Row) (*TherapyRequest, error) {
	var (
		req         TherapyRequest
		startMinute int
	)
	err := row.Scan(
		&req.ID, &req.TenantID, &req.CounselorID, &req.ClientID, &req.ServiceID,
		&req.Status, &req.StartDate, &startMinute, &req.Format,
		&req.TreatmentTarget, &req.CancelToken, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("therapy: scan request: %w", err)
	}
	req.StartTime = ClockTime(startMinute)
	return &req, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s           Session
		startMinute int
	)
	err := row.Scan(
		&s.ID, &s.RequestID, &s.TenantID, &s.CounselorID, &s.ServiceID, &s.Position,
		&s.Date, &startMinute, &s.Format, &s.Status, &s.IsReport, &s.IsDischarge,
		&s.IsAdditional, &s.Price, &s.Tax, &s.CounselorAmount, &s.SystemAmount,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("therapy: scan session: %w", err)
	}
	s.StartTime = ClockTime(startMinute)
	return &s, nil
}
