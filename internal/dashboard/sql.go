package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// settledWhere is the settled rule expressed in SQL.
const settledWhere = `(paid OR phase = 'completed') AND phase <> 'cancelled'`

// SQLStats computes admin aggregates in the database. It runs over a
// database/sql handle on the same Postgres the pgx repositories write to.
type SQLStats struct {
	db *sql.DB
}

// NewSQLStats creates the SQL-backed aggregator.
func NewSQLStats(db *sql.DB) *SQLStats {
	if db == nil {
		panic("dashboard: sql.DB required")
	}
	return &SQLStats{db: db}
}

// AdminStats runs the aggregate queries for the admin dashboard.
func (s *SQLStats) AdminStats(ctx context.Context, since time.Time, topN int) (*AdminStats, error) {
	stats := &AdminStats{}

	totals := `
		SELECT count(*),
		       COALESCE(SUM(amount) FILTER (WHERE ` + settledWhere + `), 0)
		FROM appointments
	`
	if err := s.db.QueryRowContext(ctx, totals).Scan(&stats.Appointments, &stats.Revenue); err != nil {
		return nil, fmt.Errorf("dashboard: totals: %w", err)
	}

	byDay := `
		SELECT to_char(created_at, 'YYYY-MM-DD') AS day, SUM(amount)
		FROM appointments
		WHERE ` + settledWhere + ` AND created_at >= $1
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.db.QueryContext(ctx, byDay, since)
	if err != nil {
		return nil, fmt.Errorf("dashboard: earnings by day: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DayEarnings
		if err := rows.Scan(&d.Day, &d.Earnings); err != nil {
			return nil, fmt.Errorf("dashboard: earnings by day: %w", err)
		}
		stats.ByDay = append(stats.ByDay, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: earnings by day: %w", err)
	}

	bySpec := `
		SELECT doctor_snapshot->>'speciality' AS speciality, count(*), SUM(amount)
		FROM appointments
		WHERE ` + settledWhere + `
		GROUP BY speciality
		ORDER BY SUM(amount) DESC
	`
	specRows, err := s.db.QueryContext(ctx, bySpec)
	if err != nil {
		return nil, fmt.Errorf("dashboard: earnings by speciality: %w", err)
	}
	defer specRows.Close()
	for specRows.Next() {
		var se SpecialityEarnings
		if err := specRows.Scan(&se.Speciality, &se.Appointments, &se.Earnings); err != nil {
			return nil, fmt.Errorf("dashboard: earnings by speciality: %w", err)
		}
		stats.BySpeciality = append(stats.BySpeciality, se)
	}
	if err := specRows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: earnings by speciality: %w", err)
	}

	top := `
		SELECT doctor_id, max(doctor_snapshot->>'name'), count(*), SUM(amount)
		FROM appointments
		WHERE ` + settledWhere + `
		GROUP BY doctor_id
		ORDER BY count(*) DESC, doctor_id
		LIMIT $1
	`
	topRows, err := s.db.QueryContext(ctx, top, topN)
	if err != nil {
		return nil, fmt.Errorf("dashboard: top doctors: %w", err)
	}
	defer topRows.Close()
	for topRows.Next() {
		var r DoctorRank
		if err := topRows.Scan(&r.DoctorID, &r.Name, &r.Settled, &r.Earnings); err != nil {
			return nil, fmt.Errorf("dashboard: top doctors: %w", err)
		}
		stats.TopDoctors = append(stats.TopDoctors, r)
	}
	if err := topRows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: top doctors: %w", err)
	}

	return stats, nil
}
