package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/mindwell-health/practice-platform/internal/catalog"
	"github.com/mindwell-health/practice-platform/internal/schedule"
	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// RequestShift is the outcome of rescheduling one therapy request.
type RequestShift struct {
	Request *therapy.TherapyRequest
	Moved   []*therapy.Session
}

// Rescheduler pushes a counselor's pending sessions past an absence window.
//
// Sessions inside the window are displaced to the first weekday after it,
// spaced one service interval apart. Sessions after the window shift by the
// days the displaced block consumed, with each new date floored to one
// interval after its predecessor so the calendar stays strictly ordered.
// Reports follow their session's new date; the discharge report lands one
// interval after the last regular session. Terminal sessions keep their dates.
type Rescheduler struct {
	repo    therapy.Repository
	catalog catalog.Store
	logger  *logging.Logger
}

func NewRescheduler(repo therapy.Repository, store catalog.Store, logger *logging.Logger) *Rescheduler {
	if repo == nil {
		panic("absence: therapy repository required")
	}
	if store == nil {
		panic("absence: catalog store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Rescheduler{repo: repo, catalog: store, logger: logger}
}

// Apply pauses every ongoing request of the counselor and moves its calendar
// past the absence. Each request is rescheduled in its own repository
// transaction; a failure on one request does not roll back the others.
func (r *Rescheduler) Apply(ctx context.Context, rec *Record) ([]RequestShift, error) {
	requests, err := r.repo.ListRequestsByCounselor(ctx, rec.CounselorID, therapy.RequestOngoing)
	if err != nil {
		return nil, fmt.Errorf("absence: list ongoing requests: %w", err)
	}

	var shifts []RequestShift
	for _, req := range requests {
		if err := r.repo.UpdateRequestStatus(ctx, req.ID, therapy.RequestPaused); err != nil {
			return shifts, fmt.Errorf("absence: pause request %s: %w", req.ID, err)
		}
		req.Status = therapy.RequestPaused

		moved, err := r.shiftRequest(ctx, req, rec)
		if err != nil {
			return shifts, err
		}
		shifts = append(shifts, RequestShift{Request: req, Moved: moved})
	}
	return shifts, nil
}

func (r *Rescheduler) shiftRequest(ctx context.Context, req *therapy.TherapyRequest, rec *Record) ([]*therapy.Session, error) {
	sessions, err := r.repo.ListSessions(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("absence: list sessions for %s: %w", req.ID, err)
	}
	svc, err := r.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("absence: resolve service for %s: %w", req.ID, err)
	}
	interval := svc.Interval()

	var (
		displaced  []*therapy.Session
		downstream []*therapy.Session
		reports    []*therapy.Session
		discharge  *therapy.Session
	)
	for _, s := range sessions {
		switch {
		case s.IsDischarge:
			discharge = s
		case s.IsReport:
			reports = append(reports, s)
		case !s.Actionable():
			// no-shows, cancellations and completed sessions keep their dates
		case !s.Date.Before(rec.StartDate) && !s.Date.After(rec.EndDate):
			displaced = append(displaced, s)
		case s.Date.After(rec.EndDate):
			downstream = append(downstream, s)
		}
	}
	if len(displaced) == 0 && len(downstream) == 0 {
		return nil, nil
	}

	extensionDays := len(displaced) * interval
	newDates := make(map[int]time.Time, len(displaced)+len(downstream))

	var cursor time.Time
	for i, s := range displaced {
		var d time.Time
		if i == 0 {
			d = schedule.NextWeekday(rec.EndDate.AddDate(0, 0, 1))
		} else {
			d = schedule.AddDays(cursor, interval)
		}
		cursor = d
		newDates[s.Position] = d
	}
	for _, s := range downstream {
		d := schedule.NextWeekday(s.Date.AddDate(0, 0, extensionDays))
		if !cursor.IsZero() {
			if floor := schedule.AddDays(cursor, interval); d.Before(floor) {
				d = floor
			}
		}
		cursor = d
		newDates[s.Position] = d
	}

	updates := make([]therapy.SessionDateUpdate, 0, len(newDates)+len(reports)+1)
	moved := make([]*therapy.Session, 0, len(newDates))
	appendMove := func(s *therapy.Session, d time.Time) {
		updates = append(updates, therapy.SessionDateUpdate{SessionID: s.ID, Date: d})
		cp := *s
		cp.Date = d
		moved = append(moved, &cp)
	}
	for _, s := range append(append([]*therapy.Session{}, displaced...), downstream...) {
		appendMove(s, newDates[s.Position])
	}
	for _, s := range reports {
		if d, ok := newDates[s.Position]; ok && s.Actionable() {
			appendMove(s, d)
		}
	}
	if discharge != nil && discharge.Actionable() && !cursor.IsZero() {
		appendMove(discharge, schedule.AddDays(cursor, interval))
	}

	if err := r.repo.RescheduleSessions(ctx, req.ID, updates); err != nil {
		return nil, fmt.Errorf("absence: reschedule request %s: %w", req.ID, err)
	}

	r.logger.Info("absence rescheduled request",
		"request_id", req.ID, "counselor_id", rec.CounselorID,
		"displaced", len(displaced), "shifted", len(downstream),
		"extension_days", extensionDays)
	return moved, nil
}

// lastDate returns the latest new date among moved sessions.
func lastDate(shifts []RequestShift) time.Time {
	var last time.Time
	for _, shift := range shifts {
		for _, s := range shift.Moved {
			if s.Date.After(last) {
				last = s.Date
			}
		}
	}
	return last
}
