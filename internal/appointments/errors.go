package appointments

import "errors"

var (
	// ErrSlotUnavailable is returned when the requested time is already
	// occupied; the caller should pick another slot.
	ErrSlotUnavailable = errors.New("appointments: slot unavailable")

	// ErrDoctorUnavailable is returned when the doctor is flagged
	// unavailable for new bookings.
	ErrDoctorUnavailable = errors.New("appointments: doctor unavailable")

	// ErrDoctorNotFound is returned for unknown doctor IDs.
	ErrDoctorNotFound = errors.New("appointments: doctor not found")

	// ErrInvalidAppointment covers unknown appointment IDs, unauthorized
	// callers, and transitions from a terminal state. It deliberately does
	// not reveal which of those applies.
	ErrInvalidAppointment = errors.New("appointments: invalid appointment")

	// ErrNotFound is the repository-level miss; the service maps it to
	// ErrInvalidAppointment before it reaches a caller.
	ErrNotFound = errors.New("appointments: not found")
)
