package therapy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a therapy request.
type RequestStatus string

const (
	RequestOngoing    RequestStatus = "ongoing"
	RequestPaused     RequestStatus = "paused"
	RequestDischarged RequestStatus = "discharged"
)

// SessionStatus is the lifecycle state of one session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionNoShow     SessionStatus = "no_show"
	SessionCancelled  SessionStatus = "cancelled"
	SessionDischarged SessionStatus = "discharged"
	SessionInactive   SessionStatus = "inactive"
)

// SessionStatusFromLegacy maps the numeric codes older clients still send to
// the canonical enum. This is the only place legacy codes are interpreted.
func SessionStatusFromLegacy(code int) (SessionStatus, bool) {
	switch code {
	case 1:
		return SessionScheduled, true
	case 2:
		return SessionNoShow, true
	case 3:
		return SessionCancelled, true
	case 4:
		return SessionDischarged, true
	case 5:
		return SessionInactive, true
	default:
		return "", false
	}
}

// SessionFormat says how a session is delivered.
type SessionFormat string

const (
	FormatOnline   SessionFormat = "online"
	FormatInPerson SessionFormat = "in_person"
)

// ClockTime is a time of day in minutes since midnight. It marshals as
// "HH:MM" and stays an integer everywhere else so collision math is plain
// arithmetic.
type ClockTime int

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("therapy: invalid clock time %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("therapy: clock time %q out of range", s)
	}
	return ClockTime(hh*60 + mm), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Minutes returns the raw minutes-since-midnight value.
func (c ClockTime) Minutes() int { return int(c) }

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TherapyRequest is one treatment block owning an ordered run of sessions.
type TherapyRequest struct {
	ID              uuid.UUID     `json:"id"`
	TenantID        uuid.UUID     `json:"tenant_id"`
	CounselorID     uuid.UUID     `json:"counselor_id"`
	ClientID        uuid.UUID     `json:"client_id"`
	ServiceID       uuid.UUID     `json:"service_id"`
	Status          RequestStatus `json:"status"`
	StartDate       time.Time     `json:"start_date"`
	StartTime       ClockTime     `json:"start_time"`
	Format          SessionFormat `json:"format"`
	TreatmentTarget string        `json:"treatment_target,omitempty"`
	CancelToken     uuid.UUID     `json:"cancel_token"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Session is one scheduled appointment or report slot.
type Session struct {
	ID           uuid.UUID     `json:"id"`
	RequestID    uuid.UUID     `json:"request_id"`
	TenantID     uuid.UUID     `json:"tenant_id"`
	CounselorID  uuid.UUID     `json:"counselor_id"`
	ServiceID    uuid.UUID     `json:"service_id"`
	Position     int           `json:"position"`
	Date         time.Time     `json:"date"`
	StartTime    ClockTime     `json:"start_time"`
	Format       SessionFormat `json:"format"`
	Status       SessionStatus `json:"status"`
	IsReport     bool          `json:"is_report"`
	IsDischarge  bool          `json:"is_discharge"`
	IsAdditional bool          `json:"is_additional"`

	Price           decimal.Decimal `json:"price"`
	Tax             decimal.Decimal `json:"tax"`
	CounselorAmount decimal.Decimal `json:"counselor_amount"`
	SystemAmount    decimal.Decimal `json:"system_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actionable reports whether the session is still in its initial harmless
// state. A request may only be deleted while every session is actionable.
func (s *Session) Actionable() bool {
	return s.Status == SessionScheduled
}
