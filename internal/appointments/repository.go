package appointments

import (
	"context"
	"time"
)

// Repository is the appointment record store. MarkPaid and Transition are
// compare-and-set operations: they apply their write only when the current
// state passes the guard, and report false otherwise, so concurrent
// duplicate confirmations and cancel/complete races resolve to exactly one
// winner.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Appointment, error)

	// MarkPaid sets paid=true iff the appointment is still booked and
	// unpaid. Returns ErrNotFound for unknown IDs.
	MarkPaid(ctx context.Context, id, method string, at time.Time) (bool, error)

	// Transition moves a booked appointment to a terminal phase.
	// Returns ErrNotFound for unknown IDs.
	Transition(ctx context.Context, id string, to Phase) (bool, error)
}
