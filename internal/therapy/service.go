package therapy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindwell-health/practice-platform/internal/catalog"
	"github.com/mindwell-health/practice-platform/internal/collision"
	"github.com/mindwell-health/practice-platform/internal/directory"
	"github.com/mindwell-health/practice-platform/internal/forms"
	"github.com/mindwell-health/practice-platform/internal/observability/metrics"
	"github.com/mindwell-health/practice-platform/internal/schedule"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

var tracer = otel.Tracer("mindwell.internal.therapy")

// Notifier delivers schedule notifications. Implementations must not block
// the request path; failures are logged, never surfaced to the caller.
type Notifier interface {
	ScheduleCreated(ctx context.Context, req *TherapyRequest, sessions []*Session)
	ScheduleChanged(ctx context.Context, req *TherapyRequest, session *Session)
}

// CreateRequestInput carries everything needed to open a therapy request.
type CreateRequestInput struct {
	CounselorID     uuid.UUID
	ClientID        uuid.UUID
	ServiceID       uuid.UUID
	StartDate       time.Time
	StartTime       ClockTime
	Format          SessionFormat
	TreatmentTarget string
}

// UpdateSessionInput is a partial session update. Nil fields are untouched.
type UpdateSessionInput struct {
	Date      *time.Time
	StartTime *ClockTime
	Format    *SessionFormat
	Status    *SessionStatus
}

// Service orchestrates the therapy request lifecycle: schedule generation,
// collision admission, persistence, form attachment, and notifications.
type Service struct {
	repo      Repository
	catalog   catalog.Store
	directory directory.Directory
	generator *schedule.Generator
	detector  *collision.Detector
	rules     forms.RuleSource

	dischargeCode string

	notifier Notifier
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

// ServiceParams wires a Service. Repo, Catalog, Directory, Generator and
// Detector are required; the rest degrade gracefully when nil.
type ServiceParams struct {
	Repo          Repository
	Catalog       catalog.Store
	Directory     directory.Directory
	Generator     *schedule.Generator
	Detector      *collision.Detector
	Rules         forms.RuleSource
	DischargeCode string
	Notifier      Notifier
	Metrics       *metrics.SchedulingMetrics
	Logger        *logging.Logger
}

func NewService(p ServiceParams) *Service {
	if p.Repo == nil {
		panic("therapy: repository required")
	}
	if p.Catalog == nil {
		panic("therapy: catalog store required")
	}
	if p.Directory == nil {
		panic("therapy: directory required")
	}
	if p.Generator == nil {
		panic("therapy: schedule generator required")
	}
	if p.Detector == nil {
		panic("therapy: collision detector required")
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}
	return &Service{
		repo:          p.Repo,
		catalog:       p.Catalog,
		directory:     p.Directory,
		generator:     p.Generator,
		detector:      p.Detector,
		rules:         p.Rules,
		dischargeCode: p.DischargeCode,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
		logger:        p.Logger,
	}
}

// CreateRequest opens a therapy request and books its full session calendar
// in one shot. The collision guard runs inside the repository's per-counselor
// critical section so two concurrent requests for the same counselor cannot
// both pass the check.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*TherapyRequest, []*Session, error) {
	ctx, span := tracer.Start(ctx, "therapy.create_request")
	defer span.End()
	started := time.Now()

	counselor, client, err := s.resolveParticipants(ctx, in.CounselorID, in.ClientID)
	if err != nil {
		return nil, nil, err
	}
	tenantID := counselor.TenantID
	span.SetAttributes(attribute.String("tenant_id", tenantID.String()))

	svc, err := s.catalog.GetServiceForTenant(ctx, tenantID, in.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	if svc.IsReport || svc.IsAddon {
		return nil, nil, ErrServiceNotRequestable
	}

	discharge, err := s.resolveDischarge(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	fees, err := s.catalog.GetFeeReference(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	specs, err := s.generator.Generate(ctx, in.StartDate, svc, discharge, fees)
	if err != nil {
		s.metrics.ObserveRequest(string(svc.FormulaType), "rejected")
		return nil, nil, err
	}

	target := in.TreatmentTarget
	if target == "" {
		target = client.TreatmentTarget
	}

	now := time.Now().UTC()
	req := &TherapyRequest{
		ID:              uuid.New(),
		TenantID:        tenantID,
		CounselorID:     counselor.ID,
		ClientID:        client.ID,
		ServiceID:       svc.ID,
		Status:          RequestOngoing,
		StartDate:       schedule.DateOnly(in.StartDate),
		StartTime:       in.StartTime,
		Format:          in.Format,
		TreatmentTarget: target,
		CancelToken:     uuid.New(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	sessions := make([]*Session, 0, len(specs))
	for _, spec := range specs {
		sessions = append(sessions, &Session{
			ID:              uuid.New(),
			RequestID:       req.ID,
			TenantID:        tenantID,
			CounselorID:     counselor.ID,
			ServiceID:       spec.ServiceID,
			Position:        spec.Position,
			Date:            spec.Date,
			StartTime:       in.StartTime,
			Format:          in.Format,
			Status:          SessionScheduled,
			IsReport:        spec.IsReport,
			IsDischarge:     spec.IsDischarge,
			Price:           spec.Amounts.Price,
			Tax:             spec.Amounts.Tax,
			CounselorAmount: spec.Amounts.CounselorAmount,
			SystemAmount:    spec.Amounts.SystemAmount,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	guard := func(ctx context.Context) error {
		return s.checkCalendar(ctx, counselor.ID, sessions)
	}
	if err := s.repo.CreateRequestWithSessions(ctx, req, sessions, guard); err != nil {
		if IsCollision(err) {
			s.metrics.ObserveCollision()
			s.metrics.ObserveRequest(string(svc.FormulaType), "collision")
		}
		return nil, nil, err
	}

	s.attachForms(ctx, req, svc, sessions)

	if s.notifier != nil {
		s.notifier.ScheduleCreated(ctx, req, sessions)
	}
	s.metrics.ObserveRequest(string(svc.FormulaType), "created")
	s.metrics.ObserveGenerationDuration(time.Since(started).Seconds())

	s.logger.Info("therapy request created",
		"request_id", req.ID, "counselor_id", counselor.ID, "sessions", len(sessions))
	return req, sessions, nil
}

// GetRequest returns a request with its ordered sessions.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*TherapyRequest, []*Session, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return req, sessions, nil
}

// ListRequests lists a counselor's requests, optionally filtered by status.
func (s *Service) ListRequests(ctx context.Context, counselorID uuid.UUID, status RequestStatus) ([]*TherapyRequest, error) {
	return s.repo.ListRequestsByCounselor(ctx, counselorID, status)
}

// ListCounselorSessions lists a counselor's sessions inside a date range.
func (s *Service) ListCounselorSessions(ctx context.Context, counselorID uuid.UUID, from, to time.Time) ([]*Session, error) {
	return s.repo.ListCounselorSessions(ctx, counselorID, schedule.DateOnly(from), schedule.DateOnly(to))
}

// UpdateSession applies a partial update. Moving a conflictable session in
// date or time re-runs collision admission with the session itself excluded.
// A date move carries same-position progress reports to the new date.
// Completing the discharge report closes the whole request.
func (s *Service) UpdateSession(ctx context.Context, id uuid.UUID, in UpdateSessionInput) (*Session, error) {
	ctx, span := tracer.Start(ctx, "therapy.update_session")
	defer span.End()

	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	moved := false
	dateChanged := false
	if in.Date != nil {
		d := schedule.DateOnly(*in.Date)
		if !d.Equal(sess.Date) {
			sess.Date = d
			moved = true
			dateChanged = true
		}
	}
	if in.StartTime != nil && *in.StartTime != sess.StartTime {
		sess.StartTime = *in.StartTime
		moved = true
	}
	if in.Format != nil {
		sess.Format = *in.Format
	}
	statusChanged := false
	if in.Status != nil && *in.Status != sess.Status {
		sess.Status = *in.Status
		statusChanged = true
	}
	sess.UpdatedAt = time.Now().UTC()

	var guard func(ctx context.Context) error
	if moved && !sess.IsReport && sess.Status == SessionScheduled {
		guard = func(ctx context.Context) error {
			conflict, err := s.detector.Check(ctx, sess.CounselorID, sess.Date, sess.StartTime.Minutes(), sess.ID)
			if err != nil {
				return err
			}
			if conflict != nil {
				s.metrics.ObserveCollision()
				return &CollisionError{
					SessionID: conflict.SessionID,
					RequestID: conflict.RequestID,
					Date:      sess.Date.Format("2006-01-02"),
					Time:      sess.StartTime.String(),
				}
			}
			return nil
		}
	}

	if err := s.repo.UpdateSession(ctx, sess, guard); err != nil {
		return nil, err
	}

	if dateChanged && !sess.IsReport {
		if err := s.moveCompanionReports(ctx, sess); err != nil {
			return nil, err
		}
	}

	if statusChanged && sess.IsDischarge && sess.Status == SessionDischarged {
		if err := s.repo.UpdateRequestStatus(ctx, sess.RequestID, RequestDischarged); err != nil {
			return nil, err
		}
		s.logger.Info("therapy request discharged", "request_id", sess.RequestID)
	}

	if moved && s.notifier != nil {
		if req, err := s.repo.GetRequest(ctx, sess.RequestID); err == nil {
			s.notifier.ScheduleChanged(ctx, req, sess)
		}
	}
	return sess, nil
}

// moveCompanionReports keeps same-position progress reports on the date of
// the regular session they accompany.
func (s *Service) moveCompanionReports(ctx context.Context, sess *Session) error {
	siblings, err := s.repo.ListSessions(ctx, sess.RequestID)
	if err != nil {
		return err
	}
	var updates []SessionDateUpdate
	for _, sib := range siblings {
		if sib.ID == sess.ID || !sib.IsReport || sib.IsDischarge {
			continue
		}
		if sib.Position != sess.Position || !sib.Actionable() {
			continue
		}
		if !schedule.DateOnly(sib.Date).Equal(sess.Date) {
			updates = append(updates, SessionDateUpdate{SessionID: sib.ID, Date: sess.Date})
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return s.repo.RescheduleSessions(ctx, sess.RequestID, updates)
}

// MarkNoShow flags a session the client missed.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Session, error) {
	status := SessionNoShow
	return s.UpdateSession(ctx, id, UpdateSessionInput{Status: &status})
}

// CancelSession cancels a single session without touching the rest of the
// calendar. Cancelled sessions release their slot for other bookings.
func (s *Service) CancelSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	status := SessionCancelled
	return s.UpdateSession(ctx, id, UpdateSessionInput{Status: &status})
}

// DeleteRequest removes a request and all its sessions. The caller must hold
// the cancel token issued at creation, and every session must still be in its
// initial scheduled state.
func (s *Service) DeleteRequest(ctx context.Context, id, cancelToken uuid.UUID) error {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.CancelToken != cancelToken {
		return ErrCancelTokenMismatch
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if !sess.Actionable() {
			return ErrRequestNotDeletable
		}
	}
	if err := s.repo.DeleteRequest(ctx, id); err != nil {
		return err
	}
	s.logger.Info("therapy request deleted", "request_id", id)
	return nil
}

func (s *Service) resolveParticipants(ctx context.Context, counselorID, clientID uuid.UUID) (*directory.Profile, *directory.Profile, error) {
	counselor, err := s.directory.GetProfile(ctx, counselorID)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return nil, nil, ErrInvalidParticipant
		}
		return nil, nil, err
	}
	client, err := s.directory.GetProfile(ctx, clientID)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return nil, nil, ErrInvalidParticipant
		}
		return nil, nil, err
	}
	if counselor.Role != directory.RoleCounselor || client.Role != directory.RoleClient {
		return nil, nil, ErrInvalidParticipant
	}
	return counselor, client, nil
}

// resolveDischarge finds the tenant's discharge report service by code,
// falling back to any tenant's definition when this tenant has none.
func (s *Service) resolveDischarge(ctx context.Context, tenantID uuid.UUID) (*catalog.ServiceDefinition, error) {
	discharge, err := s.catalog.GetServiceByCode(ctx, tenantID, s.dischargeCode)
	if err == nil {
		return discharge, nil
	}
	if !errors.Is(err, catalog.ErrServiceNotFound) {
		return nil, err
	}
	discharge, err = s.catalog.FindServiceByCodeAnyTenant(ctx, s.dischargeCode)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, ErrDischargeServiceNotFound
		}
		return nil, err
	}
	return discharge, nil
}

// checkCalendar runs collision admission for every regular slot of a new
// request. Reports share their regular session's slot and are never checked.
func (s *Service) checkCalendar(ctx context.Context, counselorID uuid.UUID, sessions []*Session) error {
	for _, sess := range sessions {
		if sess.IsReport {
			continue
		}
		conflict, err := s.detector.Check(ctx, counselorID, sess.Date, sess.StartTime.Minutes(), uuid.Nil)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &CollisionError{
				SessionID: conflict.SessionID,
				RequestID: conflict.RequestID,
				Date:      sess.Date.Format("2006-01-02"),
				Time:      sess.StartTime.String(),
			}
		}
	}
	return nil
}

// attachForms resolves placement rules and links forms to sessions. Failures
// leave the schedule intact; the booking must not fail over form wiring.
func (s *Service) attachForms(ctx context.Context, req *TherapyRequest, svc *catalog.ServiceDefinition, sessions []*Session) {
	if s.rules == nil {
		return
	}
	rules, err := s.rules.RulesFor(ctx, forms.Query{
		TenantID:        req.TenantID,
		ServiceID:       svc.ID,
		TreatmentTarget: req.TreatmentTarget,
	})
	if err != nil {
		s.logger.Warn("form rule lookup failed", "request_id", req.ID, "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}
	refs := make([]forms.SessionRef, 0, len(sessions))
	for _, sess := range sessions {
		refs = append(refs, forms.SessionRef{ID: sess.ID, Position: sess.Position, IsReport: sess.IsReport || sess.IsDischarge})
	}
	attachments := forms.Resolve(refs, rules)
	if len(attachments) == 0 {
		return
	}
	if err := s.repo.AttachForms(ctx, attachments); err != nil {
		s.logger.Warn("form attachment failed", "request_id", req.ID, "error", err)
	}
}
