package absence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresCreateRejectsOverlap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	rec := &Record{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		CounselorID: uuid.New(),
		StartDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(rec.CounselorID, rec.StartDate, rec.EndDate).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	if err := store.Create(context.Background(), rec); !errors.Is(err, ErrAbsenceOverlap) {
		t.Fatalf("expected ErrAbsenceOverlap, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	rec := &Record{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		CounselorID: uuid.New(),
		StartDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC),
		NotifyAdmin: true,
	}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(rec.CounselorID, rec.StartDate, rec.EndDate).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO absences").
		WithArgs(rec.ID, rec.TenantID, rec.CounselorID, rec.StartDate, rec.EndDate, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresListExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	id := uuid.New()
	tenantID := uuid.New()
	counselorID := uuid.New()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "tenant_id", "counselor_id", "start_date", "end_date",
		"notify_admin", "resumed_at", "created_at",
	}).AddRow(id, tenantID, counselorID, start, end, false, (*time.Time)(nil), created)

	asOf := time.Date(2026, 4, 25, 13, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM absences WHERE resumed_at IS NULL").
		WithArgs(time.Date(2026, 4, 25, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(rows)

	expired, err := store.ListExpired(context.Background(), asOf)
	if err != nil {
		t.Fatalf("list expired failed: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired absence, got %d", len(expired))
	}
	if expired[0].ID != id || expired[0].ResumedAt != nil {
		t.Fatalf("unexpected record: %+v", expired[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresMarkResumedIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	id := uuid.New()
	at := time.Date(2026, 4, 25, 13, 30, 0, 0, time.UTC)

	// a concurrent sweep already flipped the row; zero rows is not an error
	mock.ExpectExec("UPDATE absences SET resumed_at").
		WithArgs(id, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.MarkResumed(context.Background(), id, at); err != nil {
		t.Fatalf("mark resumed failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
