// Package dashboard builds read projections over appointments for the
// doctor and admin views. All revenue figures apply the settled rule: an
// appointment counts toward earnings when it is paid or completed and not
// cancelled.
package dashboard

import (
	"context"
	"time"

	"github.com/medibook/clinic-platform/internal/appointments"
)

// DayEarnings is one day of settled revenue inside the trailing window.
type DayEarnings struct {
	Day      string `json:"day"` // yyyy-mm-dd
	Earnings int64  `json:"earnings"`
}

// SpecialityEarnings is settled revenue attributed to one speciality, taken
// from the appointment's frozen doctor snapshot.
type SpecialityEarnings struct {
	Speciality   string `json:"speciality"`
	Appointments int    `json:"appointments"`
	Earnings     int64  `json:"earnings"`
}

// DoctorRank is one row of the top-doctors leaderboard, ordered by settled
// appointment count.
type DoctorRank struct {
	DoctorID string `json:"doctor_id"`
	Name     string `json:"name"`
	Settled  int    `json:"settled"`
	Earnings int64  `json:"earnings"`
}

// DoctorDashboard is the per-doctor projection.
type DoctorDashboard struct {
	Earnings     int64                       `json:"earnings"`
	Appointments int                         `json:"appointments"`
	Patients     int                         `json:"patients"`
	Latest       []*appointments.Appointment `json:"latest"`
}

// AdminDashboard is the clinic-wide projection.
type AdminDashboard struct {
	Doctors      int                         `json:"doctors"`
	Patients     int                         `json:"patients"`
	Appointments int                         `json:"appointments"`
	Revenue      int64                       `json:"revenue"`
	ByDay        []DayEarnings               `json:"by_day"`
	BySpeciality []SpecialityEarnings        `json:"by_speciality"`
	TopDoctors   []DoctorRank                `json:"top_doctors"`
	Latest       []*appointments.Appointment `json:"latest"`
}

// AdminStats are the aggregate slices of the admin dashboard that may be
// computed in the database instead of in process.
type AdminStats struct {
	Appointments int
	Revenue      int64
	ByDay        []DayEarnings
	BySpeciality []SpecialityEarnings
	TopDoctors   []DoctorRank
}

// StatsSource computes admin aggregates. since bounds the per-day window;
// topN bounds the leaderboard.
type StatsSource interface {
	AdminStats(ctx context.Context, since time.Time, topN int) (*AdminStats, error)
}

// Counts exposes directory totals.
type Counts interface {
	CountDoctors(ctx context.Context) (int, error)
	CountPatients(ctx context.Context) (int, error)
}
