// Package directory is the boundary to the profile store. The booking core
// only reads availability, fees, and the public fields it snapshots into an
// appointment; profile editing happens elsewhere.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrDoctorNotFound is returned for unknown doctor IDs.
	ErrDoctorNotFound = errors.New("directory: doctor not found")
	// ErrPatientNotFound is returned for unknown patient IDs.
	ErrPatientNotFound = errors.New("directory: patient not found")
)

// Doctor is a doctor's public profile as seen by the booking core.
type Doctor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	Speciality string `json:"speciality"`
	Fee        int64  `json:"fee"`
	Address    string `json:"address"`
	Available  bool   `json:"available"`
}

// Patient is a patient's public profile as seen by the booking core.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Doctors resolves doctor profiles.
type Doctors interface {
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
}

// Patients resolves patient profiles.
type Patients interface {
	GetPatient(ctx context.Context, id string) (*Patient, error)
}
