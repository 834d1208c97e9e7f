package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/clinic-platform/internal/directory"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists appointment records. Guarded transitions are
// conditional UPDATEs so the check and the write execute as one statement.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting a mocked connection for tests.
func NewPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

const apptColumns = `
	id, patient_id, doctor_id, doctor_snapshot, patient_snapshot,
	slot_date, slot_time, amount, paid, phase, payment_method, paid_at, created_at
`

// Create inserts a new appointment row with its frozen snapshots.
func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	docSnap, err := json.Marshal(appt.Doctor)
	if err != nil {
		return fmt.Errorf("appointments: marshal doctor snapshot: %w", err)
	}
	patSnap, err := json.Marshal(appt.Patient)
	if err != nil {
		return fmt.Errorf("appointments: marshal patient snapshot: %w", err)
	}
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, doctor_snapshot, patient_snapshot,
			slot_date, slot_time, amount, paid, phase, payment_method, paid_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Exec(ctx, query,
		appt.ID, appt.PatientID, appt.DoctorID, docSnap, patSnap,
		appt.SlotDate, appt.SlotTime, appt.Amount, appt.Paid, string(appt.Phase),
		appt.PayMethod, appt.PaidAt, appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return appt, nil
}

// MarkPaid sets paid=true iff the appointment is still booked and unpaid.
func (r *PostgresRepository) MarkPaid(ctx context.Context, id, method string, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET paid = TRUE, payment_method = $2, paid_at = $3
		WHERE id = $1 AND phase = 'booked' AND paid = FALSE
	`
	ct, err := r.db.Exec(ctx, query, id, method, at)
	if err != nil {
		return false, fmt.Errorf("appointments: mark paid: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}
	// Distinguish a lost race from an unknown id.
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Transition moves a booked appointment into a terminal phase.
func (r *PostgresRepository) Transition(ctx context.Context, id string, to Phase) (bool, error) {
	query := `UPDATE appointments SET phase = $2 WHERE id = $1 AND phase = 'booked'`
	ct, err := r.db.Exec(ctx, query, id, string(to))
	if err != nil {
		return false, fmt.Errorf("appointments: transition: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListByPatient returns the patient's appointments, newest first.
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE patient_id = $1 ORDER BY created_at DESC`
	return r.queryList(ctx, query, patientID)
}

// ListByDoctor returns the doctor's appointments, newest first.
func (r *PostgresRepository) ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE doctor_id = $1 ORDER BY created_at DESC`
	return r.queryList(ctx, query, doctorID)
}

// ListAll returns all appointments, newest first, paginated.
func (r *PostgresRepository) ListAll(ctx context.Context, limit, offset int) ([]*Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + apptColumns + ` FROM appointments ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryList(ctx, query, limit, offset)
}

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		appt    Appointment
		docSnap []byte
		patSnap []byte
		phase   string
	)
	err := row.Scan(
		&appt.ID, &appt.PatientID, &appt.DoctorID, &docSnap, &patSnap,
		&appt.SlotDate, &appt.SlotTime, &appt.Amount, &appt.Paid, &phase,
		&appt.PayMethod, &appt.PaidAt, &appt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.Phase = Phase(phase)
	if len(docSnap) > 0 {
		var doc directory.Doctor
		if err := json.Unmarshal(docSnap, &doc); err != nil {
			return nil, fmt.Errorf("decode doctor snapshot: %w", err)
		}
		appt.Doctor = doc
	}
	if len(patSnap) > 0 {
		var pat directory.Patient
		if err := json.Unmarshal(patSnap, &pat); err != nil {
			return nil, fmt.Errorf("decode patient snapshot: %w", err)
		}
		appt.Patient = pat
	}
	return &appt, nil
}
