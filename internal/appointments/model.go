package appointments

import (
	"time"

	"github.com/medibook/clinic-platform/internal/directory"
)

// Phase is the lifecycle phase of an appointment. Payment is tracked as an
// orthogonal fact so cancelled-and-completed is unrepresentable while a
// paid appointment can still complete or cancel.
type Phase string

const (
	PhaseBooked    Phase = "booked"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// Status is the externally visible four-state view of phase plus payment.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment links a patient and doctor to one slot. Doctor and Patient
// are frozen copies of public profile data captured at booking time; the
// core never re-reads live profiles for an existing appointment.
type Appointment struct {
	ID        string             `json:"id"`
	PatientID string             `json:"patient_id"`
	DoctorID  string             `json:"doctor_id"`
	Doctor    directory.Doctor   `json:"doctor"`
	Patient   directory.Patient  `json:"patient"`
	SlotDate  string             `json:"slot_date"`
	SlotTime  string             `json:"slot_time"`
	Amount    int64              `json:"amount"`
	Paid      bool               `json:"paid"`
	Phase     Phase              `json:"phase"`
	PayMethod string             `json:"payment_method,omitempty"`
	PaidAt    *time.Time         `json:"paid_at,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Status collapses phase and payment into the four-state machine.
func (a *Appointment) Status() Status {
	switch a.Phase {
	case PhaseCancelled:
		return StatusCancelled
	case PhaseCompleted:
		return StatusCompleted
	default:
		if a.Paid {
			return StatusPaid
		}
		return StatusBooked
	}
}

// Settled reports whether the appointment counts toward realized revenue:
// paid online, or completed (settled in cash), and not cancelled. This
// asymmetry is deliberate business policy.
func (a *Appointment) Settled() bool {
	if a.Phase == PhaseCancelled {
		return false
	}
	return a.Paid || a.Phase == PhaseCompleted
}
