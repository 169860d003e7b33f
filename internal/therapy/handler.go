package therapy

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/catalog"
	"github.com/mindwell-health/practice-platform/internal/schedule"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// Handler handles HTTP requests for the scheduling API.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a scheduling handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("therapy: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// CreateRequestBody is the JSON payload for POST /therapy-requests.
type CreateRequestBody struct {
	CounselorID     uuid.UUID `json:"counselor_id"`
	ClientID        uuid.UUID `json:"client_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	StartDate       string    `json:"start_date"`
	StartTime       string    `json:"start_time"`
	Format          string    `json:"format"`
	TreatmentTarget string    `json:"treatment_target,omitempty"`
}

// RequestResponse is a request with its full session calendar.
type RequestResponse struct {
	Request  *TherapyRequest `json:"request"`
	Sessions []*Session      `json:"sessions"`
}

// CreateRequest handles POST /therapy-requests.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	startDate, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		http.Error(w, "invalid start_date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	startTime, err := ParseClock(body.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time, want HH:MM", http.StatusBadRequest)
		return
	}
	format := SessionFormat(body.Format)
	if format == "" {
		format = FormatOnline
	}
	if format != FormatOnline && format != FormatInPerson {
		http.Error(w, "invalid format", http.StatusBadRequest)
		return
	}

	req, sessions, err := h.service.CreateRequest(r.Context(), CreateRequestInput{
		CounselorID:     body.CounselorID,
		ClientID:        body.ClientID,
		ServiceID:       body.ServiceID,
		StartDate:       startDate,
		StartTime:       startTime,
		Format:          format,
		TreatmentTarget: body.TreatmentTarget,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RequestResponse{Request: req, Sessions: sessions})
}

// GetRequest handles GET /therapy-requests/{requestID}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "requestID")
	if !ok {
		return
	}
	req, sessions, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestResponse{Request: req, Sessions: sessions})
}

// ListRequests handles GET /therapy-requests?counselor_id=&status=.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	counselorID, err := uuid.Parse(r.URL.Query().Get("counselor_id"))
	if err != nil {
		http.Error(w, "missing or invalid counselor_id", http.StatusBadRequest)
		return
	}
	status := RequestStatus(r.URL.Query().Get("status"))
	switch status {
	case "", RequestOngoing, RequestPaused, RequestDischarged:
	default:
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	requests, err := h.service.ListRequests(r.Context(), counselorID, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

// DeleteRequest handles DELETE /therapy-requests/{requestID}?token=.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "requestID")
	if !ok {
		return
	}
	token, err := uuid.Parse(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "missing or invalid token", http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteRequest(r.Context(), id, token); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCounselorSessions handles GET /counselors/{counselorID}/sessions?from=&to=.
func (h *Handler) ListCounselorSessions(w http.ResponseWriter, r *http.Request) {
	counselorID, ok := parseIDParam(w, r, "counselorID")
	if !ok {
		return
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return
	}
	sessions, err := h.service.ListCounselorSessions(r.Context(), counselorID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// UpdateSessionBody is the JSON payload for PUT /sessions/{sessionID}.
// All fields are optional. Status accepts the string enum; legacy numeric
// codes arrive via LegacyStatus.
type UpdateSessionBody struct {
	Date         *string `json:"date,omitempty"`
	StartTime    *string `json:"start_time,omitempty"`
	Format       *string `json:"format,omitempty"`
	Status       *string `json:"status,omitempty"`
	LegacyStatus *int    `json:"status_code,omitempty"`
}

// UpdateSession handles PUT /sessions/{sessionID}.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}
	var body UpdateSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var in UpdateSessionInput
	if body.Date != nil {
		d, err := time.Parse("2006-01-02", *body.Date)
		if err != nil {
			http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		in.Date = &d
	}
	if body.StartTime != nil {
		t, err := ParseClock(*body.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time, want HH:MM", http.StatusBadRequest)
			return
		}
		in.StartTime = &t
	}
	if body.Format != nil {
		f := SessionFormat(*body.Format)
		if f != FormatOnline && f != FormatInPerson {
			http.Error(w, "invalid format", http.StatusBadRequest)
			return
		}
		in.Format = &f
	}
	if body.Status != nil {
		s := SessionStatus(*body.Status)
		switch s {
		case SessionScheduled, SessionNoShow, SessionCancelled, SessionDischarged, SessionInactive:
			in.Status = &s
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	} else if body.LegacyStatus != nil {
		s, ok := SessionStatusFromLegacy(*body.LegacyStatus)
		if !ok {
			http.Error(w, "invalid status_code", http.StatusBadRequest)
			return
		}
		in.Status = &s
	}

	sess, err := h.service.UpdateSession(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// MarkNoShow handles POST /sessions/{sessionID}/no-show.
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}
	sess, err := h.service.MarkNoShow(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CancelSession handles POST /sessions/{sessionID}/cancel.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}
	sess, err := h.service.CancelSession(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// writeError maps domain errors onto HTTP statuses. Collisions carry the
// conflicting slot so clients can offer the next free time.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ce *CollisionError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":               "scheduling collision",
			"conflict_session_id": ce.SessionID,
			"conflict_request_id": ce.RequestID,
			"date":                ce.Date,
			"time":                ce.Time,
		})
		return
	}

	switch {
	case errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, catalog.ErrServiceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidParticipant),
		errors.Is(err, ErrServiceNotRequestable),
		errors.Is(err, ErrDischargeServiceNotFound),
		errors.Is(err, catalog.ErrFeeReferenceNotFound),
		errors.Is(err, schedule.ErrFormulaMismatch):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrCancelTokenMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrRequestNotDeletable):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("scheduling request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
