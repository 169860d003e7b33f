package therapy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedMemoryRequest(t *testing.T, repo *InMemoryRepository, counselorID uuid.UUID, start ClockTime) (*TherapyRequest, *Session) {
	t.Helper()
	req := &TherapyRequest{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		CounselorID: counselorID,
		ClientID:    uuid.New(),
		ServiceID:   uuid.New(),
		Status:      RequestOngoing,
		StartDate:   time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		StartTime:   start,
		Format:      FormatOnline,
		CancelToken: uuid.New(),
	}
	sess := &Session{
		ID:          uuid.New(),
		RequestID:   req.ID,
		TenantID:    req.TenantID,
		CounselorID: counselorID,
		ServiceID:   req.ServiceID,
		Position:    1,
		Date:        req.StartDate,
		StartTime:   start,
		Format:      FormatOnline,
		Status:      SessionScheduled,
	}
	if err := repo.CreateRequestWithSessions(context.Background(), req, []*Session{sess}, nil); err != nil {
		t.Fatalf("seed request failed: %v", err)
	}
	return req, sess
}

// The guard runs inside the serialized mutation window and must still be able
// to read repository state, the way the Postgres guard queries inside its
// transaction.
func TestInMemoryGuardReadsRepositoryState(t *testing.T) {
	repo := NewInMemoryRepository()
	counselorID := uuid.New()
	_, existing := seedMemoryRequest(t, repo, counselorID, 600)

	var seen int
	req, sess := buildGuardedRequest(counselorID)
	done := make(chan error, 1)
	go func() {
		done <- repo.CreateRequestWithSessions(context.Background(), req, []*Session{sess}, func(ctx context.Context) error {
			slots, err := repo.ActiveSlots(ctx, counselorID, existing.Date)
			seen = len(slots)
			return err
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("create with guard failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("create with guard did not complete")
	}
	if seen != 1 {
		t.Fatalf("guard expected to see 1 booked slot, saw %d", seen)
	}
}

func TestInMemoryUpdateSessionGuardReadsRepositoryState(t *testing.T) {
	repo := NewInMemoryRepository()
	counselorID := uuid.New()
	_, sess := seedMemoryRequest(t, repo, counselorID, 600)

	moved := *sess
	moved.StartTime = 780

	done := make(chan error, 1)
	go func() {
		done <- repo.UpdateSession(context.Background(), &moved, func(ctx context.Context) error {
			_, err := repo.ActiveSlots(ctx, counselorID, sess.Date)
			return err
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("update with guard failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update with guard did not complete")
	}

	got, err := repo.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if got.StartTime != 780 {
		t.Fatalf("expected start 780, got %d", got.StartTime)
	}
}

func buildGuardedRequest(counselorID uuid.UUID) (*TherapyRequest, *Session) {
	req := &TherapyRequest{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		CounselorID: counselorID,
		ClientID:    uuid.New(),
		ServiceID:   uuid.New(),
		Status:      RequestOngoing,
		StartDate:   time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		StartTime:   900,
		Format:      FormatOnline,
		CancelToken: uuid.New(),
	}
	sess := &Session{
		ID:          uuid.New(),
		RequestID:   req.ID,
		TenantID:    req.TenantID,
		CounselorID: counselorID,
		ServiceID:   req.ServiceID,
		Position:    1,
		Date:        req.StartDate,
		StartTime:   900,
		Format:      FormatOnline,
		Status:      SessionScheduled,
	}
	return req, sess
}
