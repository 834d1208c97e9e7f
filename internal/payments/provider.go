// Package payments reconciles external provider confirmations against the
// appointment lifecycle. Two structurally different providers (order/signed
// callback and initiate/redirect-verify) sit behind one initiate/confirm
// contract; only the verification mechanics differ per provider.
package payments

import (
	"context"
	"errors"

	"github.com/medibook/clinic-platform/internal/appointments"
)

var (
	// ErrUnknownProvider is returned for provider names with no registered
	// integration.
	ErrUnknownProvider = errors.New("payments: unknown provider")

	// ErrNotPayable is returned when initiation is attempted for a
	// cancelled, completed, or already-paid appointment.
	ErrNotPayable = errors.New("payments: appointment not payable")

	// ErrAmountTooSmall is returned when the appointment fee is below the
	// provider's minimum chargeable amount.
	ErrAmountTooSmall = errors.New("payments: amount below provider minimum")
)

// Handle identifies an initiated payment at the provider.
type Handle struct {
	Provider   string `json:"provider"`
	Reference  string `json:"reference"`
	PaymentURL string `json:"payment_url,omitempty"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// Callback carries the caller-supplied confirmation fields. None of them
// are trusted: the provider integration re-queries the provider for the
// authoritative status.
type Callback struct {
	PaymentID string // razorpay
	OrderID   string // razorpay
	Signature string // razorpay
	Pidx      string // khalti
}

// Reference returns the provider transaction reference carried by the
// callback.
func (c Callback) Reference(provider string) string {
	if provider == ProviderKhalti {
		return c.Pidx
	}
	return c.OrderID
}

// Verification is the provider's authoritative answer for a confirmation.
// AppointmentID is set only when the provider itself carries the
// reconciliation key (the order receipt); otherwise the gateway resolves
// it from the stored transaction.
type Verification struct {
	Reference     string
	AppointmentID string
	Settled       bool
	Reason        string
	Amount        int64
	Raw           []byte
}

// Provider is one payment provider integration.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, appt *appointments.Appointment) (*Handle, error)
	Verify(ctx context.Context, cb Callback) (*Verification, error)
}

// Outcome classifies a confirmation attempt.
type Outcome string

const (
	OutcomePaid        Outcome = "paid"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeRejected    Outcome = "rejected"
)

// ConfirmResult is the gateway's answer to a confirmation callback.
type ConfirmResult struct {
	Outcome       Outcome `json:"result"`
	Reason        string  `json:"reason,omitempty"`
	AppointmentID string  `json:"appointment_id,omitempty"`
}
