package therapy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/collision"
	"github.com/mindwell-health/practice-platform/internal/schedule"
)

// SessionDateUpdate moves one session to a new date.
type SessionDateUpdate struct {
	SessionID uuid.UUID
	Date      time.Time
}

// Repository persists therapy requests and their sessions. Guard callbacks
// run inside the same transaction (and per-counselor lock) as the write, so a
// collision re-check inside a guard observes every committed competing write.
type Repository interface {
	collision.SlotSource

	CreateRequestWithSessions(ctx context.Context, req *TherapyRequest, sessions []*Session, guard func(ctx context.Context) error) error
	GetRequest(ctx context.Context, id uuid.UUID) (*TherapyRequest, error)
	ListRequestsByCounselor(ctx context.Context, counselorID uuid.UUID, status RequestStatus) ([]*TherapyRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error

	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context, requestID uuid.UUID) ([]*Session, error)
	ListCounselorSessions(ctx context.Context, counselorID uuid.UUID, from, to time.Time) ([]*Session, error)
	UpdateSession(ctx context.Context, s *Session, guard func(ctx context.Context) error) error
	RescheduleSessions(ctx context.Context, requestID uuid.UUID, updates []SessionDateUpdate) error

	AttachForms(ctx context.Context, attachments map[uuid.UUID][]uuid.UUID) error
}

// InMemoryRepository is a Repository backed by maps, for tests and local runs.
// txMu plays the advisory lock's role: it serializes guarded mutations so a
// guard observes every committed competing write, while mu alone protects the
// maps and stays free for the guard's own reads.
type InMemoryRepository struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	requests map[uuid.UUID]*TherapyRequest
	sessions map[uuid.UUID]*Session
	forms    map[uuid.UUID][]uuid.UUID
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		requests: make(map[uuid.UUID]*TherapyRequest),
		sessions: make(map[uuid.UUID]*Session),
		forms:    make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *InMemoryRepository) CreateRequestWithSessions(ctx context.Context, req *TherapyRequest, sessions []*Session, guard func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	if guard != nil {
		if err := guard(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cp := *req
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.requests[req.ID] = &cp
	for _, s := range sessions {
		sc := *s
		sc.CreatedAt = now
		sc.UpdatedAt = now
		r.sessions[s.ID] = &sc
	}
	return nil
}

func (r *InMemoryRepository) GetRequest(ctx context.Context, id uuid.UUID) (*TherapyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *InMemoryRepository) ListRequestsByCounselor(ctx context.Context, counselorID uuid.UUID, status RequestStatus) ([]*TherapyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*TherapyRequest
	for _, req := range r.requests {
		if req.CounselorID == counselorID && (status == "" || req.Status == status) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return ErrRequestNotFound
	}
	delete(r.requests, id)
	for sid, s := range r.sessions {
		if s.RequestID == id {
			delete(r.sessions, sid)
			delete(r.forms, sid)
		}
	}
	return nil
}

func (r *InMemoryRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *InMemoryRepository) ListSessions(ctx context.Context, requestID uuid.UUID) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.RequestID == requestID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSessions(out)
	return out, nil
}

func (r *InMemoryRepository) ListCounselorSessions(ctx context.Context, counselorID uuid.UUID, from, to time.Time) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.CounselorID != counselorID {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortSessions(out)
	return out, nil
}

func (r *InMemoryRepository) UpdateSession(ctx context.Context, s *Session, guard func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.mu.RLock()
	_, ok := r.sessions[s.ID]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	if guard != nil {
		if err := guard(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	r.sessions[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) RescheduleSessions(ctx context.Context, requestID uuid.UUID, updates []SessionDateUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, u := range updates {
		s, ok := r.sessions[u.SessionID]
		if !ok || s.RequestID != requestID {
			return ErrSessionNotFound
		}
		s.Date = schedule.DateOnly(u.Date)
		s.UpdatedAt = now
	}
	return nil
}

func (r *InMemoryRepository) AttachForms(ctx context.Context, attachments map[uuid.UUID][]uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID, formIDs := range attachments {
		if _, ok := r.sessions[sessionID]; !ok {
			return ErrSessionNotFound
		}
		r.forms[sessionID] = append(r.forms[sessionID], formIDs...)
	}
	return nil
}

// FormsFor exposes attachments for assertions in tests.
func (r *InMemoryRepository) FormsFor(sessionID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uuid.UUID(nil), r.forms[sessionID]...)
}

// ActiveSlots implements collision.SlotSource: sessions of ongoing requests
// on the given date, excluding reports and terminal or inactive statuses.
func (r *InMemoryRepository) ActiveSlots(ctx context.Context, counselorID uuid.UUID, date time.Time) ([]collision.BookedSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	day := schedule.DateOnly(date)
	var out []collision.BookedSlot
	for _, s := range r.sessions {
		if s.CounselorID != counselorID || !schedule.DateOnly(s.Date).Equal(day) {
			continue
		}
		if !slotConflictable(s) {
			continue
		}
		req, ok := r.requests[s.RequestID]
		if !ok || req.Status != RequestOngoing {
			continue
		}
		out = append(out, collision.BookedSlot{
			SessionID:   s.ID,
			RequestID:   s.RequestID,
			StartMinute: s.StartTime.Minutes(),
		})
	}
	return out, nil
}

// slotConflictable mirrors the SQL filter in the Postgres repository.
func slotConflictable(s *Session) bool {
	if s.IsReport {
		return false
	}
	switch s.Status {
	case SessionDischarged, SessionInactive, SessionCancelled:
		return false
	}
	return true
}

func sortSessions(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Position != sessions[j].Position {
			return sessions[i].Position < sessions[j].Position
		}
		// Reports sort after their regular session at the same position.
		return !sessions[i].IsReport && sessions[j].IsReport
	})
}
