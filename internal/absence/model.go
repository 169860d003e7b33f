package absence

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAbsenceTooShort is returned when the leave is under the configured
	// minimum and regular sessions can absorb it without rescheduling.
	ErrAbsenceTooShort = errors.New("absence shorter than the rescheduling minimum")

	// ErrAbsenceNotFound is returned when no absence matches the id.
	ErrAbsenceNotFound = errors.New("absence not found")

	// ErrAbsenceOverlap is returned when the counselor already has an open
	// absence covering part of the requested range.
	ErrAbsenceOverlap = errors.New("absence overlaps an existing one")
)

// Record is one counselor leave of absence. Requests paused by it resume
// once EndDate passes; ResumedAt marks the sweep that did so.
type Record struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	CounselorID uuid.UUID  `json:"counselor_id"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	NotifyAdmin bool       `json:"notify_admin"`
	ResumedAt   *time.Time `json:"resumed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Days is the inclusive calendar length of the absence.
func (r *Record) Days() int {
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

// Summary reports what one absence did to a counselor's calendar.
type Summary struct {
	Absence         *Record   `json:"absence"`
	RequestsPaused  int       `json:"requests_paused"`
	SessionsMoved   int       `json:"sessions_moved"`
	LastSessionDate time.Time `json:"last_session_date,omitempty"`
}
