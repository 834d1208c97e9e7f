package calendar

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists occupancy in the booked_slots table. The primary
// key (doctor_id, slot_date, slot_time) makes Reserve a storage-level
// compare-and-set: a conflicting insert affects zero rows.
type PostgresStore struct {
	db querier
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("calendar: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// NewPostgresStoreWithQuerier allows injecting a mocked connection for tests.
func NewPostgresStoreWithQuerier(q querier) *PostgresStore {
	return &PostgresStore{db: q}
}

// Reserve inserts the slot, reporting false when it already exists.
func (s *PostgresStore) Reserve(ctx context.Context, doctorID, dateKey, slotTime string) (bool, error) {
	query := `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, doctorID, dateKey, slotTime)
	if err != nil {
		return false, fmt.Errorf("calendar: reserve slot: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Release deletes the slot entry; deleting a missing row is a no-op.
func (s *PostgresStore) Release(ctx context.Context, doctorID, dateKey, slotTime string) error {
	query := `DELETE FROM booked_slots WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3`
	if _, err := s.db.Exec(ctx, query, doctorID, dateKey, slotTime); err != nil {
		return fmt.Errorf("calendar: release slot: %w", err)
	}
	return nil
}

// BookedSlots loads the doctor's full occupancy map.
func (s *PostgresStore) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	query := `
		SELECT slot_date, slot_time FROM booked_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, slot_time
	`
	rows, err := s.db.Query(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("calendar: load slots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var dateKey, slotTime string
		if err := rows.Scan(&dateKey, &slotTime); err != nil {
			return nil, fmt.Errorf("calendar: scan slot: %w", err)
		}
		out[dateKey] = append(out[dateKey], slotTime)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calendar: iterate slots: %w", err)
	}
	return out, nil
}
