package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/absence"
	"github.com/mindwell-health/practice-platform/internal/directory"
	"github.com/mindwell-health/practice-platform/internal/observability/metrics"
	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// emailJob is the queue payload: one fully rendered email.
type emailJob struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Service renders schedule notifications and queues them for delivery.
// Enqueue failures are logged and counted, never returned: the booking or
// reschedule has already committed and must not be unwound over email.
type Service struct {
	queue     Queue
	directory directory.Directory
	admin     string
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger
}

type ServiceParams struct {
	Queue      Queue
	Directory  directory.Directory
	AdminEmail string
	Metrics    *metrics.SchedulingMetrics
	Logger     *logging.Logger
}

func NewService(p ServiceParams) *Service {
	if p.Queue == nil {
		panic("notify: queue required")
	}
	if p.Directory == nil {
		panic("notify: directory required")
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}
	return &Service{
		queue:     p.Queue,
		directory: p.Directory,
		admin:     p.AdminEmail,
		metrics:   p.Metrics,
		logger:    p.Logger,
	}
}

var (
	_ therapy.Notifier = (*Service)(nil)
	_ absence.Notifier = (*Service)(nil)
)

// ScheduleCreated emails the client and counselor their new calendar.
func (s *Service) ScheduleCreated(ctx context.Context, req *therapy.TherapyRequest, sessions []*therapy.Session) {
	calendar := renderCalendar(sessions)
	s.sendToProfile(ctx, "schedule_created", req.ClientID,
		"Your therapy schedule is confirmed",
		"Your sessions have been scheduled:\n\n"+calendar+
			"\nIf a time does not work for you, contact your counselor to reschedule.")
	s.sendToProfile(ctx, "schedule_created", req.CounselorID,
		"New therapy request booked",
		fmt.Sprintf("A new therapy request (%s) was booked into your calendar:\n\n%s", req.ID, calendar))
}

// ScheduleChanged emails the client about a moved session.
func (s *Service) ScheduleChanged(ctx context.Context, req *therapy.TherapyRequest, session *therapy.Session) {
	s.sendToProfile(ctx, "schedule_changed", req.ClientID,
		"A session was rescheduled",
		fmt.Sprintf("Your session %d now takes place on %s at %s.",
			session.Position, session.Date.Format("Monday, January 2"), session.StartTime))
}

// ScheduleShifted emails the client the full post-absence calendar.
func (s *Service) ScheduleShifted(ctx context.Context, req *therapy.TherapyRequest, moved []*therapy.Session) {
	s.sendToProfile(ctx, "schedule_shifted", req.ClientID,
		"Your therapy schedule has moved",
		"Your counselor is temporarily unavailable and your remaining sessions were moved:\n\n"+
			renderCalendar(moved)+
			"\nYour schedule resumes automatically; no action is needed.")
}

// AbsenceRecorded emails the practice admin a summary of the leave.
func (s *Service) AbsenceRecorded(ctx context.Context, rec *absence.Record, summary *absence.Summary) {
	if s.admin == "" {
		return
	}
	body := fmt.Sprintf(
		"Counselor %s is absent %s through %s (%d days).\n\nRequests paused: %d\nSessions moved: %d\n",
		rec.CounselorID,
		rec.StartDate.Format("2006-01-02"), rec.EndDate.Format("2006-01-02"), rec.Days(),
		summary.RequestsPaused, summary.SessionsMoved)
	if !summary.LastSessionDate.IsZero() {
		body += fmt.Sprintf("Last rescheduled session: %s\n", summary.LastSessionDate.Format("2006-01-02"))
	}
	s.enqueue(ctx, emailJob{
		Kind:    "absence_recorded",
		To:      s.admin,
		Subject: "Counselor absence registered",
		Body:    body,
	})
}

func (s *Service) sendToProfile(ctx context.Context, kind string, userID uuid.UUID, subject, body string) {
	profile, err := s.directory.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("notify: recipient lookup failed", "user_id", userID, "error", err)
		s.metrics.ObserveNotifyFailure(kind)
		return
	}
	if profile.Email == "" {
		return
	}
	s.enqueue(ctx, emailJob{
		Kind:    kind,
		To:      profile.Email,
		ToName:  profile.FullName(),
		Subject: subject,
		Body:    body,
	})
}

func (s *Service) enqueue(ctx context.Context, job emailJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		s.logger.Error("notify: marshal job", "error", err)
		s.metrics.ObserveNotifyFailure(job.Kind)
		return
	}
	if err := s.queue.Send(ctx, string(payload)); err != nil {
		s.logger.Error("notify: enqueue failed", "kind", job.Kind, "to", job.To, "error", err)
		s.metrics.ObserveNotifyFailure(job.Kind)
	}
}

func renderCalendar(sessions []*therapy.Session) string {
	var b strings.Builder
	for _, sess := range sessions {
		label := "Session"
		switch {
		case sess.IsDischarge:
			label = "Discharge report"
		case sess.IsReport:
			label = "Progress report"
		}
		fmt.Fprintf(&b, "  %s %d: %s at %s\n",
			label, sess.Position, sess.Date.Format("Monday, January 2, 2006"), sess.StartTime)
	}
	return b.String()
}

// Dispatcher drains the queue and delivers emails.
type Dispatcher struct {
	queue   Queue
	sender  EmailSender
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

func NewDispatcher(queue Queue, sender EmailSender, m *metrics.SchedulingMetrics, logger *logging.Logger) *Dispatcher {
	if queue == nil {
		panic("notify: queue required")
	}
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{queue: queue, sender: sender, metrics: m, logger: logger}
}

// Run polls the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		msgs, err := d.queue.Receive(ctx, 10, 5)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			d.logger.Error("notify: receive failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(2 * time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg queueMessage) {
	var job emailJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		d.logger.Error("notify: malformed job, dropping", "message_id", msg.ID, "error", err)
		_ = d.queue.Delete(ctx, msg.ReceiptHandle)
		return
	}
	if err := d.sender.Send(ctx, EmailMessage{
		To:      job.To,
		ToName:  job.ToName,
		Subject: job.Subject,
		Body:    job.Body,
	}); err != nil {
		// left on the queue for redelivery
		d.logger.Error("notify: delivery failed", "kind", job.Kind, "to", job.To, "error", err)
		d.metrics.ObserveNotifyFailure(job.Kind)
		return
	}
	_ = d.queue.Delete(ctx, msg.ReceiptHandle)
}
