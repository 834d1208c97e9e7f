package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medibook/clinic-platform/internal/calendar"
	"github.com/medibook/clinic-platform/internal/identity"
	"github.com/medibook/clinic-platform/internal/observability/metrics"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// Handler exposes booking, cancellation, completion, and listing over HTTP.
type Handler struct {
	service *Service
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewHandler creates the appointments HTTP handler.
func NewHandler(service *Service, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, metrics: m, logger: logger}
}

type bookRequest struct {
	DoctorID string `json:"doctor_id"`
	SlotDate string `json:"slot_date"`
	SlotTime string `json:"slot_time"`
}

// Book handles POST /api/appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok || caller.Role != identity.RolePatient {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.DoctorID == "" {
		http.Error(w, "doctor_id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Book(r.Context(), caller.ID, req.DoctorID, req.SlotDate, req.SlotTime)
	if err != nil {
		h.metrics.ObserveBooking(bookingOutcome(err))
		h.writeError(w, err)
		return
	}
	h.metrics.ObserveBooking("booked")
	writeJSON(w, http.StatusCreated, appointmentView(appt))
}

// Cancel handles POST /api/appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	id := chi.URLParam(r, "appointmentID")
	if err := h.service.Cancel(r.Context(), caller, id); err != nil {
		h.metrics.ObserveTransition("cancel", "rejected")
		h.writeError(w, err)
		return
	}
	h.metrics.ObserveTransition("cancel", "applied")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Complete handles POST /api/appointments/{appointmentID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok || caller.Role != identity.RoleDoctor {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	id := chi.URLParam(r, "appointmentID")
	if err := h.service.Complete(r.Context(), caller.ID, id); err != nil {
		h.metrics.ObserveTransition("complete", "rejected")
		h.writeError(w, err)
		return
	}
	h.metrics.ObserveTransition("complete", "applied")
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// List handles GET /api/appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	appts, err := h.service.ListFor(r.Context(), caller, limit, offset)
	if err != nil {
		h.logger.Error("list appointments failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	views := make([]map[string]any, 0, len(appts))
	for _, a := range appts {
		views = append(views, appointmentView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": views})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrBadDateKey), errors.Is(err, calendar.ErrBadSlotTime):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSlotUnavailable):
		http.Error(w, "slot unavailable", http.StatusConflict)
	case errors.Is(err, ErrDoctorUnavailable):
		http.Error(w, "doctor unavailable", http.StatusConflict)
	case errors.Is(err, ErrDoctorNotFound):
		http.Error(w, "doctor not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidAppointment):
		http.Error(w, "invalid appointment", http.StatusBadRequest)
	default:
		h.logger.Error("appointment operation failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrDoctorUnavailable):
		return "doctor_unavailable"
	case errors.Is(err, ErrDoctorNotFound):
		return "doctor_not_found"
	default:
		return "error"
	}
}

func appointmentView(a *Appointment) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"doctor":     a.Doctor,
		"patient":    a.Patient,
		"slot_date":  a.SlotDate,
		"slot_time":  a.SlotTime,
		"amount":     a.Amount,
		"status":     a.Status(),
		"paid":       a.Paid,
		"created_at": a.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
