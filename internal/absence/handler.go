package absence

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/tenancy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// Handler handles the admin absence endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("absence: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// CreateBody is the JSON payload for POST /admin/absences.
type CreateBody struct {
	CounselorID uuid.UUID `json:"counselor_id"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	NotifyAdmin bool      `json:"notify_admin"`
}

// Create handles POST /admin/absences.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		http.Error(w, "invalid start_date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		http.Error(w, "invalid end_date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	tenantID, _ := tenancy.TenantIDFromContext(r.Context())

	summary, err := h.service.Create(r.Context(), CreateInput{
		TenantID:    tenantID,
		CounselorID: body.CounselorID,
		StartDate:   start,
		EndDate:     end,
		NotifyAdmin: body.NotifyAdmin,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(summary)
}

// ListByCounselor handles GET /admin/counselors/{counselorID}/absences.
func (h *Handler) ListByCounselor(w http.ResponseWriter, r *http.Request) {
	counselorID, err := uuid.Parse(chi.URLParam(r, "counselorID"))
	if err != nil {
		http.Error(w, "invalid counselorID", http.StatusBadRequest)
		return
	}
	records, err := h.service.ListByCounselor(r.Context(), counselorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"absences": records,
		"count":    len(records),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAbsenceTooShort):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrAbsenceOverlap):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrAbsenceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("absence request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
