package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory reads profiles from the relational database.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory initializes a directory backed by pgxpool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

// GetDoctor fetches a doctor's public profile.
func (d *PostgresDirectory) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	query := `
		SELECT id, name, image, speciality, fee, address, available
		FROM doctors
		WHERE id = $1
	`
	var doc Doctor
	err := d.pool.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &doc.Image, &doc.Speciality, &doc.Fee, &doc.Address, &doc.Available,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("directory: load doctor: %w", err)
	}
	return &doc, nil
}

// GetPatient fetches a patient's public profile.
func (d *PostgresDirectory) GetPatient(ctx context.Context, id string) (*Patient, error) {
	query := `
		SELECT id, name, image, email, phone
		FROM patients
		WHERE id = $1
	`
	var p Patient
	err := d.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Image, &p.Email, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("directory: load patient: %w", err)
	}
	return &p, nil
}

// CountDoctors returns the number of registered doctors.
func (d *PostgresDirectory) CountDoctors(ctx context.Context) (int, error) {
	var n int
	if err := d.pool.QueryRow(ctx, `SELECT count(*) FROM doctors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("directory: count doctors: %w", err)
	}
	return n, nil
}

// CountPatients returns the number of registered patients.
func (d *PostgresDirectory) CountPatients(ctx context.Context) (int, error) {
	var n int
	if err := d.pool.QueryRow(ctx, `SELECT count(*) FROM patients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("directory: count patients: %w", err)
	}
	return n, nil
}
