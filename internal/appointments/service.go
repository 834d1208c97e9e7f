package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/clinic-platform/internal/calendar"
	"github.com/medibook/clinic-platform/internal/directory"
	"github.com/medibook/clinic-platform/internal/identity"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// PaymentOutcome classifies the result of a MarkPaid attempt.
type PaymentOutcome int

const (
	// PaymentApplied means this call performed the Booked -> Paid transition.
	PaymentApplied PaymentOutcome = iota
	// PaymentAlreadyPaid means the appointment was already paid; nothing
	// was written.
	PaymentAlreadyPaid
	// PaymentNotEligible means the appointment is in a terminal phase and
	// cannot accept payment.
	PaymentNotEligible
)

// Service is the slot allocator and lifecycle manager. It owns the order
// of calendar and record writes: reserve before create with compensating
// release, cancel before release before ack.
type Service struct {
	repo     Repository
	slots    calendar.Store
	doctors  directory.Doctors
	patients directory.Patients
	logger   *logging.Logger
	now      func() time.Time
}

// NewService wires the lifecycle manager.
func NewService(repo Repository, slots calendar.Store, doctors directory.Doctors, patients directory.Patients, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		slots:    slots,
		doctors:  doctors,
		patients: patients,
		logger:   logger.Component("appointments"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Book allocates the slot and creates the appointment record atomically as
// a unit: if persistence fails the reservation is rolled back.
func (s *Service) Book(ctx context.Context, patientID, doctorID, dateKey, slotTime string) (*Appointment, error) {
	if err := calendar.ValidateDateKey(dateKey); err != nil {
		return nil, err
	}
	if err := calendar.ValidateSlotTime(slotTime); err != nil {
		return nil, err
	}

	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("appointments: doctor lookup: %w", err)
	}
	if !doc.Available {
		return nil, ErrDoctorUnavailable
	}

	pat, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: patient lookup: %w", err)
	}

	reserved, err := s.slots.Reserve(ctx, doctorID, dateKey, slotTime)
	if err != nil {
		return nil, fmt.Errorf("appointments: reserve slot: %w", err)
	}
	if !reserved {
		return nil, ErrSlotUnavailable
	}

	appt := &Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Doctor:    *doc,
		Patient:   *pat,
		SlotDate:  dateKey,
		SlotTime:  slotTime,
		Amount:    doc.Fee,
		Paid:      false,
		Phase:     PhaseBooked,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		// Compensate: no occupied slot may exist without a record.
		if relErr := s.slots.Release(ctx, doctorID, dateKey, slotTime); relErr != nil {
			s.logger.Error("slot rollback failed after persist error",
				"error", relErr, "doctor_id", doctorID, "slot_date", dateKey, "slot_time", slotTime)
		}
		return nil, fmt.Errorf("appointments: persist: %w", err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID, "doctor_id", doctorID, "slot_date", dateKey, "slot_time", slotTime)
	return appt, nil
}

// Cancel moves an appointment to cancelled and frees its slot. Patients
// may cancel their own appointments, doctors their own, admins any.
// The slot is released before the cancellation is acknowledged.
func (s *Service) Cancel(ctx context.Context, caller identity.Caller, appointmentID string) error {
	appt, err := s.get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !s.mayCancel(caller, appt) {
		return ErrInvalidAppointment
	}

	applied, err := s.repo.Transition(ctx, appointmentID, PhaseCancelled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidAppointment
		}
		return fmt.Errorf("appointments: cancel: %w", err)
	}
	if !applied {
		// Lost the race to a concurrent cancel or complete.
		return ErrInvalidAppointment
	}

	if err := s.slots.Release(ctx, appt.DoctorID, appt.SlotDate, appt.SlotTime); err != nil {
		return fmt.Errorf("appointments: release slot: %w", err)
	}
	s.logger.Info("appointment cancelled",
		"appointment_id", appointmentID, "caller_role", string(caller.Role))
	return nil
}

func (s *Service) mayCancel(caller identity.Caller, appt *Appointment) bool {
	switch caller.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleDoctor:
		return caller.ID == appt.DoctorID
	case identity.RolePatient:
		return caller.ID == appt.PatientID
	default:
		return false
	}
}

// Complete marks service rendered. Only the owning doctor may complete, and
// only from a non-terminal state.
func (s *Service) Complete(ctx context.Context, doctorID, appointmentID string) error {
	appt, err := s.get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.DoctorID != doctorID {
		return ErrInvalidAppointment
	}

	applied, err := s.repo.Transition(ctx, appointmentID, PhaseCompleted)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidAppointment
		}
		return fmt.Errorf("appointments: complete: %w", err)
	}
	if !applied {
		return ErrInvalidAppointment
	}
	s.logger.Info("appointment completed", "appointment_id", appointmentID, "doctor_id", doctorID)
	return nil
}

// MarkPaid applies the Booked -> Paid transition at most once. The
// repository guard is checked-and-set atomically, so concurrent duplicate
// confirmations resolve to one PaymentApplied and one PaymentAlreadyPaid.
func (s *Service) MarkPaid(ctx context.Context, appointmentID, method string) (PaymentOutcome, error) {
	applied, err := s.repo.MarkPaid(ctx, appointmentID, method, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PaymentNotEligible, ErrInvalidAppointment
		}
		return PaymentNotEligible, fmt.Errorf("appointments: mark paid: %w", err)
	}
	if applied {
		s.logger.Info("appointment paid", "appointment_id", appointmentID, "method", method)
		return PaymentApplied, nil
	}

	appt, err := s.get(ctx, appointmentID)
	if err != nil {
		return PaymentNotEligible, err
	}
	if appt.Paid {
		return PaymentAlreadyPaid, nil
	}
	return PaymentNotEligible, nil
}

// Get returns one appointment; unknown IDs surface as ErrInvalidAppointment.
func (s *Service) Get(ctx context.Context, appointmentID string) (*Appointment, error) {
	return s.get(ctx, appointmentID)
}

func (s *Service) get(ctx context.Context, appointmentID string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAppointment
		}
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return appt, nil
}

// ListFor returns the appointments visible to the caller: patients and
// doctors see their own, admins see everything paginated.
func (s *Service) ListFor(ctx context.Context, caller identity.Caller, limit, offset int) ([]*Appointment, error) {
	switch caller.Role {
	case identity.RoleAdmin:
		return s.repo.ListAll(ctx, limit, offset)
	case identity.RoleDoctor:
		return s.repo.ListByDoctor(ctx, caller.ID)
	default:
		return s.repo.ListByPatient(ctx, caller.ID)
	}
}
