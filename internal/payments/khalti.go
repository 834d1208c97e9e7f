package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// ProviderKhalti is the initiate/redirect-verify provider.
const ProviderKhalti = "khalti"

// khaltiMinAmount is the provider's minimum chargeable fee in major units.
const khaltiMinAmount = 10

// KhaltiClient integrates the redirect-based provider. Initiation returns a
// hosted payment URL plus a pidx token; confirmation ignores redirect query
// parameters and re-queries the provider's lookup endpoint with the pidx.
type KhaltiClient struct {
	secretKey  string
	baseURL    string
	returnURL  string
	websiteURL string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewKhaltiClient creates the client. timeout bounds each provider call.
func NewKhaltiClient(secretKey, baseURL, returnURL, websiteURL string, timeout time.Duration, logger *logging.Logger) *KhaltiClient {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://khalti.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KhaltiClient{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		returnURL:  returnURL,
		websiteURL: websiteURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *KhaltiClient) Name() string { return ProviderKhalti }

// CreateOrder starts a hosted payment and returns the redirect handle.
func (c *KhaltiClient) CreateOrder(ctx context.Context, appt *appointments.Appointment) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "khalti.initiate", trace.WithAttributes(
		attribute.String("clinic.appointment_id", appt.ID),
		attribute.Int64("clinic.amount", appt.Amount),
	))
	defer span.End()

	if appt.Amount < khaltiMinAmount {
		return nil, fmt.Errorf("%w: %d", ErrAmountTooSmall, appt.Amount)
	}

	body := map[string]any{
		"return_url":          fmt.Sprintf("%s?appointmentId=%s", c.returnURL, appt.ID),
		"website_url":         c.websiteURL,
		"amount":              appt.Amount * 100, // paisa
		"purchase_order_id":   appt.ID,
		"purchase_order_name": "Appointment Booking",
		"customer_info": map[string]string{
			"name":  appt.Patient.Name,
			"email": appt.Patient.Email,
			"phone": appt.Patient.Phone,
		},
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: khalti payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/epayment/initiate/", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("payments: khalti request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: khalti http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: khalti api status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Pidx       string `json:"pidx"`
		PaymentURL string `json:"payment_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: khalti decode: %w", err)
	}
	if parsed.Pidx == "" {
		return nil, fmt.Errorf("payments: khalti response missing pidx")
	}
	return &Handle{
		Provider:   ProviderKhalti,
		Reference:  parsed.Pidx,
		PaymentURL: parsed.PaymentURL,
		Amount:     appt.Amount * 100,
		Currency:   "NPR",
	}, nil
}

// Verify re-queries the provider for the transaction's authoritative
// status. Redirect query parameters are attacker-controllable and are
// never consulted; only the lookup response counts, and only status
// Completed settles.
func (c *KhaltiClient) Verify(ctx context.Context, cb Callback) (*Verification, error) {
	ctx, span := tracer.Start(ctx, "khalti.lookup", trace.WithAttributes(
		attribute.String("clinic.pidx", cb.Pidx),
	))
	defer span.End()

	if cb.Pidx == "" {
		return &Verification{Reason: "missing pidx"}, nil
	}

	reqBody, err := json.Marshal(map[string]string{"pidx": cb.Pidx})
	if err != nil {
		return nil, fmt.Errorf("payments: khalti payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/epayment/lookup/", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("payments: khalti request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: khalti http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("payments: khalti read: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments: khalti api status %d: %s", resp.StatusCode, string(raw))
	}

	var lookup struct {
		Status      string `json:"status"`
		TotalAmount int64  `json:"total_amount"`
	}
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return nil, fmt.Errorf("payments: khalti decode: %w", err)
	}

	v := &Verification{
		Reference: cb.Pidx,
		Amount:    lookup.TotalAmount,
		Raw:       raw,
	}
	if lookup.Status != "Completed" {
		v.Reason = fmt.Sprintf("payment status %q", lookup.Status)
		return v, nil
	}
	v.Settled = true
	return v, nil
}
