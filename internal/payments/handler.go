package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/internal/identity"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// Handler exposes payment initiation and confirmation over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the payments HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type initiateRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Initiate handles POST /api/payments/{provider}/initiate.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok || caller.Role != identity.RolePatient {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	provider := chi.URLParam(r, "provider")
	handle, err := h.service.Initiate(r.Context(), provider, req.AppointmentID, caller.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

type razorpayConfirmRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// ConfirmRazorpay handles POST /api/payments/razorpay/confirm.
func (h *Handler) ConfirmRazorpay(w http.ResponseWriter, r *http.Request) {
	var req razorpayConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	h.confirm(w, r, ProviderRazorpay, Callback{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
}

type khaltiConfirmRequest struct {
	Pidx string `json:"pidx"`
}

// ConfirmKhalti handles POST /api/payments/khalti/confirm. The pidx may
// arrive in the body or, on the redirect path, as a query parameter.
func (h *Handler) ConfirmKhalti(w http.ResponseWriter, r *http.Request) {
	var req khaltiConfirmRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Pidx == "" {
		req.Pidx = r.URL.Query().Get("pidx")
	}
	h.confirm(w, r, ProviderKhalti, Callback{Pidx: req.Pidx})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, provider string, cb Callback) {
	res, err := h.service.Confirm(r.Context(), provider, cb)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == OutcomeRejected {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownProvider):
		http.Error(w, "unknown provider", http.StatusNotFound)
	case errors.Is(err, ErrNotPayable):
		http.Error(w, "appointment not payable", http.StatusConflict)
	case errors.Is(err, ErrAmountTooSmall):
		http.Error(w, "amount below provider minimum", http.StatusBadRequest)
	case errors.Is(err, appointments.ErrInvalidAppointment):
		http.Error(w, "invalid appointment", http.StatusBadRequest)
	default:
		h.logger.Error("payment operation failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
