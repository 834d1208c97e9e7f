package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// ProviderRazorpay is the order/signed-callback provider.
const ProviderRazorpay = "razorpay"

var tracer = otel.Tracer("clinic.internal.payments")

// RazorpayClient integrates the order-based provider. An order is created
// with the appointment ID as its receipt; confirmation re-fetches the order
// from the provider and trusts only the provider's status and receipt.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	currency   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRazorpayClient creates the client. timeout bounds each provider call.
func NewRazorpayClient(keyID, keySecret, baseURL, currency string, timeout time.Duration, logger *logging.Logger) *RazorpayClient {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayClient{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		currency:   currency,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *RazorpayClient) Name() string { return ProviderRazorpay }

// CreateOrder registers a remote order for the appointment's fee. The
// appointment ID travels as the order receipt and comes back on
// verification as the reconciliation key.
func (c *RazorpayClient) CreateOrder(ctx context.Context, appt *appointments.Appointment) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "razorpay.create_order", trace.WithAttributes(
		attribute.String("clinic.appointment_id", appt.ID),
		attribute.Int64("clinic.amount", appt.Amount),
	))
	defer span.End()

	body := map[string]any{
		"amount":   appt.Amount * 100, // smallest currency unit
		"currency": c.currency,
		"receipt":  appt.ID,
		"notes":    map[string]string{"appointment_id": appt.ID},
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: razorpay api status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: razorpay decode: %w", err)
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("payments: razorpay response missing order id")
	}
	return &Handle{
		Provider:  ProviderRazorpay,
		Reference: parsed.ID,
		Amount:    parsed.Amount,
		Currency:  parsed.Currency,
	}, nil
}

// Verify checks the callback signature, then re-fetches the order from the
// provider. The client-supplied "success" claim is never trusted; settled
// means the provider reports the order as paid, and the appointment is
// resolved from the provider-held receipt.
func (c *RazorpayClient) Verify(ctx context.Context, cb Callback) (*Verification, error) {
	ctx, span := tracer.Start(ctx, "razorpay.verify", trace.WithAttributes(
		attribute.String("clinic.order_id", cb.OrderID),
	))
	defer span.End()

	if cb.OrderID == "" || cb.PaymentID == "" {
		return &Verification{Reference: cb.OrderID, Reason: "missing order or payment id"}, nil
	}
	if !c.validSignature(cb) {
		return &Verification{Reference: cb.OrderID, Reason: "signature mismatch"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/orders/"+cb.OrderID, nil)
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay read: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments: razorpay api status %d: %s", resp.StatusCode, string(raw))
	}

	var order struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Receipt string `json:"receipt"`
		Amount  int64  `json:"amount"`
	}
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("payments: razorpay decode: %w", err)
	}

	v := &Verification{
		Reference:     cb.OrderID,
		AppointmentID: order.Receipt,
		Amount:        order.Amount,
		Raw:           raw,
	}
	if order.Status != "paid" {
		v.Reason = fmt.Sprintf("order status %q", order.Status)
		return v, nil
	}
	v.Settled = true
	return v, nil
}

func (c *RazorpayClient) validSignature(cb Callback) bool {
	if cb.Signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(cb.OrderID + "|" + cb.PaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(cb.Signature))
}
