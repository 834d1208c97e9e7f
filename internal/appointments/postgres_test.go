package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestPostgresMarkPaidGuards(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", "razorpay", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	applied, err := repo.MarkPaid(ctx, "appt-1", "razorpay", at)
	if err != nil || !applied {
		t.Fatalf("expected applied mark paid, applied=%v err=%v", applied, err)
	}

	// Guard miss on an existing row reads back as a clean false.
	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", "razorpay", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT").
		WithArgs("appt-1").
		WillReturnRows(appointmentRow(t, "appt-1", true, PhaseBooked))
	applied, err = repo.MarkPaid(ctx, "appt-1", "razorpay", at)
	if err != nil {
		t.Fatalf("mark paid error: %v", err)
	}
	if applied {
		t.Fatalf("guard miss must not report applied")
	}

	// Guard miss on a missing row surfaces ErrNotFound.
	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-missing", "razorpay", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT").
		WithArgs("appt-missing").
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.MarkPaid(ctx, "appt-missing", "razorpay", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresTransitionCAS(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)
	ctx := context.Background()

	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", "cancelled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	applied, err := repo.Transition(ctx, "appt-1", PhaseCancelled)
	if err != nil || !applied {
		t.Fatalf("expected applied transition, applied=%v err=%v", applied, err)
	}

	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", "completed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT").
		WithArgs("appt-1").
		WillReturnRows(appointmentRow(t, "appt-1", false, PhaseCancelled))
	applied, err = repo.Transition(ctx, "appt-1", PhaseCompleted)
	if err != nil {
		t.Fatalf("transition error: %v", err)
	}
	if applied {
		t.Fatalf("transition from terminal phase must not apply")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGetDecodesSnapshots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithQuerier(mock)

	mock.ExpectQuery("SELECT").
		WithArgs("appt-1").
		WillReturnRows(appointmentRow(t, "appt-1", false, PhaseBooked))

	appt, err := repo.GetByID(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if appt.Doctor.Name != "Dr. Gurung" || appt.Patient.Name != "Asha" {
		t.Fatalf("snapshots not decoded: %+v", appt)
	}
	if appt.Phase != PhaseBooked {
		t.Fatalf("unexpected phase %s", appt.Phase)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func appointmentRow(t *testing.T, id string, paid bool, phase Phase) *pgxmock.Rows {
	t.Helper()
	docSnap, _ := json.Marshal(map[string]any{"id": "doc-1", "name": "Dr. Gurung", "fee": 500})
	patSnap, _ := json.Marshal(map[string]any{"id": "pat-1", "name": "Asha"})
	var paidAt *time.Time
	if paid {
		at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
		paidAt = &at
	}
	return pgxmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "doctor_snapshot", "patient_snapshot",
		"slot_date", "slot_time", "amount", "paid", "phase", "payment_method", "paid_at", "created_at",
	}).AddRow(
		id, "pat-1", "doc-1", docSnap, patSnap,
		"10_6_2025", "10:00 AM", int64(500), paid, string(phase), "", paidAt,
		time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	)
}
