package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/medibook/clinic-platform/internal/identity"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// Handler serves the dashboard projections.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the dashboard HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Doctor handles GET /api/dashboard/doctor.
func (h *Handler) Doctor(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok || caller.Role != identity.RoleDoctor {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	view, err := h.service.Doctor(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("doctor dashboard failed", "doctor_id", caller.ID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Admin handles GET /api/dashboard/admin.
func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok || caller.Role != identity.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	view, err := h.service.Admin(r.Context())
	if err != nil {
		h.logger.Error("admin dashboard failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
