package absence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// Sweeper resumes paused therapy requests once their counselor's absence has
// ended. Sweeps are idempotent: a record is only resumed once and resuming an
// already ongoing request changes nothing.
type Sweeper struct {
	store  Store
	repo   therapy.Repository
	logger *logging.Logger
}

func NewSweeper(store Store, repo therapy.Repository, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("absence: store required")
	}
	if repo == nil {
		panic("absence: therapy repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, repo: repo, logger: logger}
}

// ResumeExpired flips every paused request of counselors whose absence ended
// before now back to ongoing. Returns the number of absences closed.
func (s *Sweeper) ResumeExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("absence: list expired: %w", err)
	}

	resumed := 0
	for _, rec := range expired {
		paused, err := s.repo.ListRequestsByCounselor(ctx, rec.CounselorID, therapy.RequestPaused)
		if err != nil {
			return resumed, fmt.Errorf("absence: list paused requests: %w", err)
		}
		for _, req := range paused {
			if err := s.repo.UpdateRequestStatus(ctx, req.ID, therapy.RequestOngoing); err != nil {
				return resumed, fmt.Errorf("absence: resume request %s: %w", req.ID, err)
			}
		}
		if err := s.store.MarkResumed(ctx, rec.ID, now); err != nil {
			return resumed, err
		}
		resumed++
		s.logger.Info("absence resumed",
			"absence_id", rec.ID, "counselor_id", rec.CounselorID, "requests", len(paused))
	}
	return resumed, nil
}

// Start schedules the sweep on a fixed interval. The returned scheduler is
// already running; call Stop on shutdown.
func (s *Sweeper) Start(interval time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.ResumeExpired(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("absence sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("absence: schedule sweep: %w", err)
	}
	scheduler.StartAsync()
	return scheduler, nil
}
