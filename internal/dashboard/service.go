package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/pkg/logging"
)

const latestLimit = 5

// Service assembles the doctor and admin projections. The doctor view is
// always computed in process from the doctor's own appointments; admin
// aggregates come from the StatsSource, which is the repository scan in
// memory mode and SQL aggregation when Postgres is configured.
type Service struct {
	repo       appointments.Repository
	counts     Counts
	stats      StatsSource
	windowDays int
	topN       int
	logger     *logging.Logger
	now        func() time.Time
}

// NewService creates the projection service. stats may be nil, in which
// case aggregates are scanned from the repository.
func NewService(repo appointments.Repository, counts Counts, stats StatsSource, windowDays, topN int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	if topN <= 0 {
		topN = 5
	}
	s := &Service{
		repo:       repo,
		counts:     counts,
		stats:      stats,
		windowDays: windowDays,
		topN:       topN,
		logger:     logger.Component("dashboard"),
		now:        time.Now,
	}
	if s.stats == nil {
		s.stats = &repoStats{repo: repo}
	}
	return s
}

// Doctor builds the per-doctor projection.
func (s *Service) Doctor(ctx context.Context, doctorID string) (*DoctorDashboard, error) {
	appts, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list doctor appointments: %w", err)
	}

	d := &DoctorDashboard{Appointments: len(appts)}
	patients := make(map[string]struct{})
	for _, a := range appts {
		patients[a.PatientID] = struct{}{}
		if a.Settled() {
			d.Earnings += a.Amount
		}
	}
	d.Patients = len(patients)
	d.Latest = head(appts, latestLimit)
	return d, nil
}

// Admin builds the clinic-wide projection.
func (s *Service) Admin(ctx context.Context) (*AdminDashboard, error) {
	doctors, err := s.counts.CountDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: count doctors: %w", err)
	}
	patients, err := s.counts.CountPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: count patients: %w", err)
	}

	since := s.now().AddDate(0, 0, -s.windowDays)
	stats, err := s.stats.AdminStats(ctx, since, s.topN)
	if err != nil {
		return nil, fmt.Errorf("dashboard: admin stats: %w", err)
	}

	latest, err := s.repo.ListAll(ctx, latestLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list appointments: %w", err)
	}

	return &AdminDashboard{
		Doctors:      doctors,
		Patients:     patients,
		Appointments: stats.Appointments,
		Revenue:      stats.Revenue,
		ByDay:        stats.ByDay,
		BySpeciality: stats.BySpeciality,
		TopDoctors:   stats.TopDoctors,
		Latest:       latest,
	}, nil
}

func head(appts []*appointments.Appointment, n int) []*appointments.Appointment {
	if len(appts) > n {
		appts = appts[:n]
	}
	out := make([]*appointments.Appointment, len(appts))
	copy(out, appts)
	return out
}

// repoStats scans every appointment in process. It backs memory mode and
// tests; Postgres deployments use SQLStats.
type repoStats struct {
	repo appointments.Repository
}

func (r *repoStats) AdminStats(ctx context.Context, since time.Time, topN int) (*AdminStats, error) {
	appts, err := r.repo.ListAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	stats := &AdminStats{Appointments: len(appts)}
	byDay := make(map[string]int64)
	bySpec := make(map[string]*SpecialityEarnings)
	byDoctor := make(map[string]*DoctorRank)

	for _, a := range appts {
		if !a.Settled() {
			continue
		}
		stats.Revenue += a.Amount

		if !a.CreatedAt.Before(since) {
			byDay[a.CreatedAt.Format("2006-01-02")] += a.Amount
		}

		spec := a.Doctor.Speciality
		se, ok := bySpec[spec]
		if !ok {
			se = &SpecialityEarnings{Speciality: spec}
			bySpec[spec] = se
		}
		se.Appointments++
		se.Earnings += a.Amount

		rank, ok := byDoctor[a.DoctorID]
		if !ok {
			rank = &DoctorRank{DoctorID: a.DoctorID, Name: a.Doctor.Name}
			byDoctor[a.DoctorID] = rank
		}
		rank.Settled++
		rank.Earnings += a.Amount
	}

	stats.ByDay = make([]DayEarnings, 0, len(byDay))
	for day, earned := range byDay {
		stats.ByDay = append(stats.ByDay, DayEarnings{Day: day, Earnings: earned})
	}
	sort.Slice(stats.ByDay, func(i, j int) bool { return stats.ByDay[i].Day < stats.ByDay[j].Day })

	stats.BySpeciality = make([]SpecialityEarnings, 0, len(bySpec))
	for _, se := range bySpec {
		stats.BySpeciality = append(stats.BySpeciality, *se)
	}
	sort.Slice(stats.BySpeciality, func(i, j int) bool {
		return stats.BySpeciality[i].Earnings > stats.BySpeciality[j].Earnings
	})

	ranks := make([]DoctorRank, 0, len(byDoctor))
	for _, r := range byDoctor {
		ranks = append(ranks, *r)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Settled != ranks[j].Settled {
			return ranks[i].Settled > ranks[j].Settled
		}
		return ranks[i].DoctorID < ranks[j].DoctorID
	})
	if len(ranks) > topN {
		ranks = ranks[:topN]
	}
	stats.TopDoctors = ranks
	return stats, nil
}
