package absence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/schedule"
)

// Store persists absence records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	ListByCounselor(ctx context.Context, counselorID uuid.UUID) ([]*Record, error)
	// ListExpired returns unresumed absences whose EndDate is before asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]*Record, error)
	MarkResumed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*Record)}
}

func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.records {
		if other.CounselorID != rec.CounselorID || other.ResumedAt != nil {
			continue
		}
		if !rec.StartDate.After(other.EndDate) && !rec.EndDate.Before(other.StartDate) {
			return ErrAbsenceOverlap
		}
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrAbsenceNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ListByCounselor(ctx context.Context, counselorID uuid.UUID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, rec := range s.records {
		if rec.CounselorID == counselorID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, asOf time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := schedule.DateOnly(asOf)
	var out []*Record
	for _, rec := range s.records {
		if rec.ResumedAt == nil && rec.EndDate.Before(day) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkResumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrAbsenceNotFound
	}
	t := at
	rec.ResumedAt = &t
	return nil
}
