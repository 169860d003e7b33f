package therapy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidParticipant is returned when the counselor or client role check fails.
	ErrInvalidParticipant = errors.New("participant role mismatch")

	// ErrServiceNotRequestable is returned when a report or add-on service is
	// requested as the root of a therapy request.
	ErrServiceNotRequestable = errors.New("service cannot root a therapy request")

	// ErrDischargeServiceNotFound is returned when the tenant has no discharge
	// report service; a request cannot exist without its terminal report.
	ErrDischargeServiceNotFound = errors.New("discharge report service not configured")

	// ErrRequestNotFound is returned when no therapy request matches the id.
	ErrRequestNotFound = errors.New("therapy request not found")

	// ErrSessionNotFound is returned when no session matches the id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRequestNotDeletable is returned when a session has already been acted upon.
	ErrRequestNotDeletable = errors.New("request has sessions that were already acted upon")

	// ErrCancelTokenMismatch is returned when a deletion presents the wrong token.
	ErrCancelTokenMismatch = errors.New("cancellation token mismatch")
)

// CollisionError reports a double-booking attempt with the session it
// conflicts against.
type CollisionError struct {
	SessionID uuid.UUID
	RequestID uuid.UUID
	Date      string
	Time      string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("scheduling collision with session %s on %s at %s", e.SessionID, e.Date, e.Time)
}

// IsCollision reports whether err wraps a CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}
