package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/internal/observability/metrics"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// Lifecycle is the slice of the appointment service the gateway needs.
type Lifecycle interface {
	Get(ctx context.Context, id string) (*appointments.Appointment, error)
	MarkPaid(ctx context.Context, id, method string) (appointments.PaymentOutcome, error)
}

// Service is the payment gateway. It initiates provider orders for payable
// appointments and reconciles confirmations idempotently: a settled payment
// is applied to the appointment exactly once no matter how many times the
// provider callback is replayed.
type Service struct {
	providers map[string]Provider
	store     TransactionStore
	lifecycle Lifecycle
	processed ProcessedTracker
	metrics   *metrics.PaymentMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewService creates the gateway. processed may be nil; the transaction
// store then carries idempotency alone.
func NewService(providers []Provider, store TransactionStore, lifecycle Lifecycle, processed ProcessedTracker, m *metrics.PaymentMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		providers: byName,
		store:     store,
		lifecycle: lifecycle,
		processed: processed,
		metrics:   m,
		logger:    logger.Component("payments"),
		now:       time.Now,
	}
}

// Initiate creates a provider order for the appointment and records a
// pending transaction keyed by the provider reference.
func (s *Service) Initiate(ctx context.Context, provider, appointmentID, patientID string) (*Handle, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	appt, err := s.lifecycle.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, appointments.ErrInvalidAppointment
	}
	if appt.Paid || appt.Phase != appointments.PhaseBooked {
		return nil, fmt.Errorf("%w: status %s", ErrNotPayable, appt.Status())
	}

	handle, err := p.CreateOrder(ctx, appt)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		Provider:      provider,
		Reference:     handle.Reference,
		AppointmentID: appt.ID,
		Amount:        handle.Amount,
		Currency:      handle.Currency,
		Outcome:       "pending",
		CreatedAt:     s.now(),
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("payments: record transaction: %w", err)
	}

	s.logger.Info("payment initiated",
		"provider", provider,
		"appointment_id", appt.ID,
		"reference", handle.Reference,
	)
	return handle, nil
}

// Confirm reconciles a provider callback. It verifies the payment against
// the provider's API (never trusting callback parameters), resolves the
// appointment, and applies the payment through the lifecycle's
// compare-and-swap. Replays return AlreadyPaid without side effects.
func (s *Service) Confirm(ctx context.Context, provider string, cb Callback) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "payments.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.provider", provider))

	start := s.now()
	res, err := s.confirm(ctx, provider, cb)
	result := "error"
	if res != nil {
		result = string(res.Outcome)
	}
	s.metrics.ObserveConfirmation(provider, result)
	s.metrics.ObserveConfirmLatency(provider, time.Since(start).Seconds())
	return res, err
}

func (s *Service) confirm(ctx context.Context, provider string, cb Callback) (*ConfirmResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	ref := cb.Reference(provider)
	if ref == "" {
		return &ConfirmResult{Outcome: OutcomeRejected, Reason: "missing payment reference"}, nil
	}

	if s.processed != nil {
		done, err := s.processed.AlreadyProcessed(ctx, provider, ref)
		if err != nil {
			s.logger.Warn("processed tracker unavailable", "error", err)
		} else if done {
			return s.replayResult(ctx, provider, ref)
		}
	}

	verification, err := p.Verify(ctx, cb)
	if err != nil {
		// Fail closed: a provider outage never settles a payment.
		s.logger.Error("provider verification failed", "provider", provider, "error", err)
		return &ConfirmResult{Outcome: OutcomeRejected, Reason: "provider unavailable"}, nil
	}

	apptID, tx, err := s.resolveAppointment(ctx, verification, provider, ref)
	if err != nil {
		return nil, err
	}
	if apptID == "" {
		return &ConfirmResult{Outcome: OutcomeRejected, Reason: "unknown payment reference"}, nil
	}

	if !verification.Settled {
		s.recordOutcome(ctx, tx, provider, ref, string(OutcomeRejected), verification.Raw)
		return &ConfirmResult{
			Outcome:       OutcomeRejected,
			Reason:        verification.Reason,
			AppointmentID: apptID,
		}, nil
	}

	outcome, err := s.lifecycle.MarkPaid(ctx, apptID, provider)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case appointments.PaymentApplied:
		s.recordOutcome(ctx, tx, provider, ref, string(OutcomePaid), verification.Raw)
		s.markProcessed(ctx, provider, ref)
		s.logger.Info("payment applied", "provider", provider, "appointment_id", apptID, "reference", ref)
		return &ConfirmResult{Outcome: OutcomePaid, AppointmentID: apptID}, nil
	case appointments.PaymentAlreadyPaid:
		s.markProcessed(ctx, provider, ref)
		return &ConfirmResult{Outcome: OutcomeAlreadyPaid, AppointmentID: apptID}, nil
	default:
		s.recordOutcome(ctx, tx, provider, ref, string(OutcomeRejected), verification.Raw)
		return &ConfirmResult{
			Outcome:       OutcomeRejected,
			Reason:        "appointment not payable",
			AppointmentID: apptID,
		}, nil
	}
}

// resolveAppointment maps a verification to its appointment. Providers that
// echo the appointment id (order receipt) resolve directly; redirect
// providers resolve through the stored transaction.
func (s *Service) resolveAppointment(ctx context.Context, v *Verification, provider, ref string) (string, *Transaction, error) {
	tx, err := s.store.GetByReference(ctx, provider, ref)
	if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		return "", nil, fmt.Errorf("payments: lookup transaction: %w", err)
	}
	if v.AppointmentID != "" {
		return v.AppointmentID, tx, nil
	}
	if tx != nil {
		return tx.AppointmentID, tx, nil
	}
	return "", nil, nil
}

// replayResult answers an already-processed callback from the stored
// transaction without touching the provider or the appointment.
func (s *Service) replayResult(ctx context.Context, provider, ref string) (*ConfirmResult, error) {
	res := &ConfirmResult{Outcome: OutcomeAlreadyPaid}
	tx, err := s.store.GetByReference(ctx, provider, ref)
	if err == nil && tx != nil {
		res.AppointmentID = tx.AppointmentID
	}
	return res, nil
}

func (s *Service) recordOutcome(ctx context.Context, tx *Transaction, provider, ref, outcome string, raw []byte) {
	if tx == nil {
		return
	}
	if err := s.store.RecordOutcome(ctx, provider, ref, outcome, raw, s.now()); err != nil {
		s.logger.Error("record payment outcome failed", "reference", ref, "error", err)
	}
}

func (s *Service) markProcessed(ctx context.Context, provider, ref string) {
	if s.processed == nil {
		return
	}
	if err := s.processed.MarkProcessed(ctx, provider, ref); err != nil {
		s.logger.Warn("mark processed failed", "provider", provider, "reference", ref, "error", err)
	}
}
