package absence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/mindwell-health/practice-platform/internal/observability/metrics"
	"github.com/mindwell-health/practice-platform/internal/schedule"
	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

var tracer = otel.Tracer("mindwell.internal.absence")

// Notifier delivers absence notifications. Failures are logged, never
// propagated; the reschedule has already committed by the time these run.
type Notifier interface {
	ScheduleShifted(ctx context.Context, req *therapy.TherapyRequest, moved []*therapy.Session)
	AbsenceRecorded(ctx context.Context, rec *Record, summary *Summary)
}

// CreateInput is an admin's absence registration.
type CreateInput struct {
	TenantID    uuid.UUID
	CounselorID uuid.UUID
	StartDate   time.Time
	EndDate     time.Time
	NotifyAdmin bool
}

// Service registers counselor absences and drives the rescheduler.
type Service struct {
	store       Store
	rescheduler *Rescheduler
	notifier    Notifier
	metrics     *metrics.SchedulingMetrics
	minDays     int
	logger      *logging.Logger
}

type ServiceParams struct {
	Store       Store
	Rescheduler *Rescheduler
	Notifier    Notifier
	Metrics     *metrics.SchedulingMetrics
	MinDays     int
	Logger      *logging.Logger
}

func NewService(p ServiceParams) *Service {
	if p.Store == nil {
		panic("absence: store required")
	}
	if p.Rescheduler == nil {
		panic("absence: rescheduler required")
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}
	return &Service{
		store:       p.Store,
		rescheduler: p.Rescheduler,
		notifier:    p.Notifier,
		metrics:     p.Metrics,
		minDays:     p.MinDays,
		logger:      p.Logger,
	}
}

// Create registers the absence and pushes the counselor's calendar past it.
// Absences shorter than the configured minimum are rejected: the practice
// absorbs those without moving sessions.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "absence.create")
	defer span.End()

	rec := &Record{
		ID:          uuid.New(),
		TenantID:    in.TenantID,
		CounselorID: in.CounselorID,
		StartDate:   schedule.DateOnly(in.StartDate),
		EndDate:     schedule.DateOnly(in.EndDate),
		NotifyAdmin: in.NotifyAdmin,
		CreatedAt:   time.Now().UTC(),
	}
	if rec.EndDate.Before(rec.StartDate) || rec.Days() < s.minDays {
		return nil, ErrAbsenceTooShort
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	shifts, err := s.rescheduler.Apply(ctx, rec)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Absence: rec, RequestsPaused: len(shifts)}
	for _, shift := range shifts {
		summary.SessionsMoved += len(shift.Moved)
	}
	summary.LastSessionDate = lastDate(shifts)

	s.metrics.ObserveRescheduled(summary.SessionsMoved)
	s.metrics.ObserveAbsenceExtension(rec.Days())

	if s.notifier != nil {
		for _, shift := range shifts {
			if len(shift.Moved) > 0 {
				s.notifier.ScheduleShifted(ctx, shift.Request, shift.Moved)
			}
		}
		if rec.NotifyAdmin {
			s.notifier.AbsenceRecorded(ctx, rec, summary)
		}
	}

	s.logger.Info("absence registered",
		"absence_id", rec.ID, "counselor_id", rec.CounselorID,
		"days", rec.Days(), "requests_paused", summary.RequestsPaused,
		"sessions_moved", summary.SessionsMoved)
	return summary, nil
}

// Get returns one absence record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.store.Get(ctx, id)
}

// ListByCounselor returns a counselor's absence history.
func (s *Service) ListByCounselor(ctx context.Context, counselorID uuid.UUID) ([]*Record, error) {
	return s.store.ListByCounselor(ctx, counselorID)
}
