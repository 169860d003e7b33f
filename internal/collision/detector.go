package collision

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Config sets the blocked window around a session's start time: the session
// itself runs PeriodMinutes, and BreakMinutes of buffer follow it.
type Config struct {
	PeriodMinutes int
	BreakMinutes  int
}

// DefaultConfig mirrors a 60-minute session with a 15-minute break.
func DefaultConfig() Config {
	return Config{PeriodMinutes: 60, BreakMinutes: 15}
}

// BookedSlot is an existing session's claim on a counselor's day. The source
// only returns slots that can actually conflict: sessions of ongoing requests
// that are not reports, not discharged, and not inactive.
type BookedSlot struct {
	SessionID   uuid.UUID
	RequestID   uuid.UUID
	StartMinute int
}

// SlotSource fetches a counselor's conflictable slots for one date.
type SlotSource interface {
	ActiveSlots(ctx context.Context, counselorID uuid.UUID, date time.Time) ([]BookedSlot, error)
}

// Conflict identifies the session a candidate time overlaps.
type Conflict struct {
	SessionID uuid.UUID
	RequestID uuid.UUID
}

// Detector is the admission-control gate against double-booking a counselor.
type Detector struct {
	source SlotSource
	cfg    Config
}

// NewDetector creates a detector over the given slot source.
func NewDetector(source SlotSource, cfg Config) *Detector {
	if source == nil {
		panic("collision: slot source required")
	}
	if cfg.PeriodMinutes <= 0 {
		cfg.PeriodMinutes = 60
	}
	if cfg.BreakMinutes < 0 {
		cfg.BreakMinutes = 0
	}
	return &Detector{source: source, cfg: cfg}
}

// Check tests a candidate start time against the counselor's day. It returns
// the first overlapping slot, or nil when the time is free. excludeSessionID
// skips the session being rescheduled so it cannot collide with itself.
func (d *Detector) Check(ctx context.Context, counselorID uuid.UUID, date time.Time, startMinute int, excludeSessionID uuid.UUID) (*Conflict, error) {
	slots, err := d.source.ActiveSlots(ctx, counselorID, date)
	if err != nil {
		return nil, err
	}

	newStart, newEnd := d.window(startMinute)
	for _, slot := range slots {
		if excludeSessionID != uuid.Nil && slot.SessionID == excludeSessionID {
			continue
		}
		otherStart, otherEnd := d.window(slot.StartMinute)
		if newStart < otherEnd && newEnd > otherStart {
			return &Conflict{SessionID: slot.SessionID, RequestID: slot.RequestID}, nil
		}
	}
	return nil, nil
}

func (d *Detector) window(startMinute int) (int, int) {
	return startMinute - d.cfg.PeriodMinutes, startMinute + d.cfg.BreakMinutes
}
