package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medibook/clinic-platform/internal/calendar"
	"github.com/medibook/clinic-platform/internal/directory"
	"github.com/medibook/clinic-platform/internal/identity"
	"github.com/medibook/clinic-platform/pkg/logging"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository, *calendar.MemoryStore, *directory.MemoryDirectory) {
	t.Helper()
	repo := NewMemoryRepository()
	slots := calendar.NewMemoryStore()
	dir := directory.NewMemoryDirectory()
	dir.PutDoctor(directory.Doctor{
		ID: "doc-1", Name: "Dr. Gurung", Speciality: "Dermatology", Fee: 500, Available: true,
	})
	dir.PutDoctor(directory.Doctor{
		ID: "doc-away", Name: "Dr. Offline", Speciality: "Cardiology", Fee: 900, Available: false,
	})
	dir.PutPatient(directory.Patient{ID: "pat-1", Name: "Asha", Phone: "+9779800000001"})
	dir.PutPatient(directory.Patient{ID: "pat-2", Name: "Bikram", Phone: "+9779800000002"})
	svc := NewService(repo, slots, dir, dir, logging.Default())
	return svc, repo, slots, dir
}

func TestBookCreatesAppointmentWithSnapshot(t *testing.T) {
	svc, _, _, dir := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if appt.Status() != StatusBooked || appt.Paid || appt.Phase != PhaseBooked {
		t.Fatalf("new appointment should be booked and unpaid, got %+v", appt)
	}
	if appt.Amount != 500 {
		t.Fatalf("amount should freeze the doctor fee, got %d", appt.Amount)
	}
	if appt.Doctor.Name != "Dr. Gurung" || appt.Patient.Name != "Asha" {
		t.Fatalf("expected frozen snapshots, got %+v / %+v", appt.Doctor, appt.Patient)
	}

	// Later profile changes must not leak into the snapshot.
	dir.PutDoctor(directory.Doctor{ID: "doc-1", Name: "Dr. Renamed", Fee: 9999, Available: true})
	got, err := svc.Get(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Doctor.Name != "Dr. Gurung" || got.Amount != 500 {
		t.Fatalf("snapshot was not frozen: %+v", got.Doctor)
	}
}

func TestBookRejectsOccupiedSlot(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM"); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	_, err := svc.Book(ctx, "pat-2", "doc-1", "10_6_2025", "10:00 AM")
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	// Different time on the same day is fine.
	if _, err := svc.Book(ctx, "pat-2", "doc-1", "10_6_2025", "10:30 AM"); err != nil {
		t.Fatalf("different slot should book: %v", err)
	}
}

func TestBookRejectsUnknownAndUnavailableDoctor(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, "pat-1", "doc-missing", "10_6_2025", "10:00 AM"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
	if _, err := svc.Book(ctx, "pat-1", "doc-away", "10_6_2025", "10:00 AM"); !errors.Is(err, ErrDoctorUnavailable) {
		t.Fatalf("expected ErrDoctorUnavailable, got %v", err)
	}
}

func TestBookValidatesSlotTokens(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, "pat-1", "doc-1", "2025-06-10", "10:00 AM"); !errors.Is(err, calendar.ErrBadDateKey) {
		t.Fatalf("expected ErrBadDateKey, got %v", err)
	}
	if _, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", ""); !errors.Is(err, calendar.ErrBadSlotTime) {
		t.Fatalf("expected ErrBadSlotTime, got %v", err)
	}
}

// failingRepo simulates a persistence failure after the slot was reserved.
type failingRepo struct {
	*MemoryRepository
}

func (f *failingRepo) Create(ctx context.Context, appt *Appointment) error {
	return errors.New("disk full")
}

func TestBookRollsBackSlotOnPersistFailure(t *testing.T) {
	_, _, slots, dir := newTestService(t)
	repo := &failingRepo{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo, slots, dir, dir, logging.Default())
	ctx := context.Background()

	if _, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM"); err == nil {
		t.Fatalf("expected persist failure to surface")
	}

	// The slot must have been released; a fresh booking succeeds.
	healthy := NewService(NewMemoryRepository(), slots, dir, dir, logging.Default())
	if _, err := healthy.Book(ctx, "pat-2", "doc-1", "10_6_2025", "10:00 AM"); err != nil {
		t.Fatalf("slot should have been rolled back, got %v", err)
	}
}

func TestCancelFreesSlotForRebooking(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if _, err := svc.Book(ctx, "pat-2", "doc-1", "10_6_2025", "10:00 AM"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected slot conflict before cancel, got %v", err)
	}

	patient := identity.Caller{ID: "pat-1", Role: identity.RolePatient}
	if err := svc.Cancel(ctx, patient, appt.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	got, _ := svc.Get(ctx, appt.ID)
	if got.Status() != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", got.Status())
	}

	// Identical booking by the second patient now succeeds.
	if _, err := svc.Book(ctx, "pat-2", "doc-1", "10_6_2025", "10:00 AM"); err != nil {
		t.Fatalf("released slot should be bookable, got %v", err)
	}
}

func TestCancelAuthorization(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	cases := []struct {
		name    string
		caller  identity.Caller
		allowed bool
	}{
		{"other patient", identity.Caller{ID: "pat-2", Role: identity.RolePatient}, false},
		{"other doctor", identity.Caller{ID: "doc-2", Role: identity.RoleDoctor}, false},
		{"unknown role", identity.Caller{ID: "pat-1", Role: "ghost"}, false},
		{"admin", identity.Caller{ID: "root", Role: identity.RoleAdmin}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Cancel(ctx, tc.caller, appt.ID)
			if tc.allowed && err != nil {
				t.Fatalf("expected cancel to succeed: %v", err)
			}
			if !tc.allowed && !errors.Is(err, ErrInvalidAppointment) {
				t.Fatalf("expected ErrInvalidAppointment, got %v", err)
			}
		})
	}
}

func TestCancelUnknownAppointment(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	admin := identity.Caller{ID: "root", Role: identity.RoleAdmin}
	if err := svc.Cancel(context.Background(), admin, "missing"); !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected ErrInvalidAppointment, got %v", err)
	}
}

func TestCompleteOnlyByOwningDoctor(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	if err := svc.Complete(ctx, "doc-2", appt.ID); !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("foreign doctor must not complete, got %v", err)
	}
	if err := svc.Complete(ctx, "doc-1", appt.ID); err != nil {
		t.Fatalf("owning doctor complete failed: %v", err)
	}
	got, _ := svc.Get(ctx, appt.ID)
	if got.Status() != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status())
	}
	if !got.Settled() {
		t.Fatalf("completed-but-unpaid appointment must count as settled")
	}
}

func TestTerminalStateImmutability(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	doctor := identity.Caller{ID: "doc-1", Role: identity.RoleDoctor}

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if err := svc.Complete(ctx, "doc-1", appt.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Completed appointments reject cancel and repeated complete.
	if err := svc.Cancel(ctx, doctor, appt.ID); !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected cancel on completed to fail, got %v", err)
	}
	if err := svc.Complete(ctx, "doc-1", appt.ID); !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected repeat complete to fail, got %v", err)
	}
	// Payment against a completed appointment is not applied.
	outcome, err := svc.MarkPaid(ctx, appt.ID, "razorpay")
	if err != nil || outcome != PaymentNotEligible {
		t.Fatalf("expected PaymentNotEligible, got %v err=%v", outcome, err)
	}

	got, _ := svc.Get(ctx, appt.ID)
	if got.Status() != StatusCompleted || got.Paid {
		t.Fatalf("terminal state mutated: %+v", got)
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	outcome, err := svc.MarkPaid(ctx, appt.ID, "razorpay")
	if err != nil || outcome != PaymentApplied {
		t.Fatalf("first mark paid: outcome=%v err=%v", outcome, err)
	}
	outcome, err = svc.MarkPaid(ctx, appt.ID, "razorpay")
	if err != nil || outcome != PaymentAlreadyPaid {
		t.Fatalf("second mark paid: outcome=%v err=%v", outcome, err)
	}

	got, _ := svc.Get(ctx, appt.ID)
	if got.Status() != StatusPaid || !got.Paid || got.PaidAt == nil {
		t.Fatalf("expected paid appointment, got %+v", got)
	}
}

func TestMarkPaidConcurrentSingleWinner(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	const racers = 32
	outcomes := make(chan PaymentOutcome, racers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcome, err := svc.MarkPaid(ctx, appt.ID, "khalti")
			if err != nil {
				t.Errorf("mark paid error: %v", err)
				return
			}
			outcomes <- outcome
		}()
	}
	close(start)
	wg.Wait()
	close(outcomes)

	applied := 0
	for outcome := range outcomes {
		if outcome == PaymentApplied {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("expected exactly one applied transition, got %d", applied)
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	const racers = 32
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	won, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotUnavailable):
			lost++
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if won != 1 || lost != racers-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", racers-1, won, lost)
	}

	appts, _ := repo.ListAll(ctx, 0, 0)
	active := 0
	for _, a := range appts {
		if a.Phase != PhaseCancelled && a.SlotDate == "10_6_2025" && a.SlotTime == "10:00 AM" {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected one non-cancelled appointment for the slot, got %d", active)
	}
}

func TestListForScopesByRole(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a1, _ := svc.Book(ctx, "pat-1", "doc-1", "10_6_2025", "10:00 AM")
	time.Sleep(2 * time.Millisecond)
	a2, _ := svc.Book(ctx, "pat-2", "doc-1", "10_6_2025", "11:00 AM")

	own, err := svc.ListFor(ctx, identity.Caller{ID: "pat-1", Role: identity.RolePatient}, 0, 0)
	if err != nil || len(own) != 1 || own[0].ID != a1.ID {
		t.Fatalf("patient list wrong: %v err=%v", own, err)
	}

	docList, err := svc.ListFor(ctx, identity.Caller{ID: "doc-1", Role: identity.RoleDoctor}, 0, 0)
	if err != nil || len(docList) != 2 {
		t.Fatalf("doctor list wrong: %d err=%v", len(docList), err)
	}
	if docList[0].ID != a2.ID {
		t.Fatalf("expected newest first, got %s", docList[0].ID)
	}

	page, err := svc.ListFor(ctx, identity.Caller{ID: "root", Role: identity.RoleAdmin}, 1, 1)
	if err != nil || len(page) != 1 || page[0].ID != a1.ID {
		t.Fatalf("admin pagination wrong: %v err=%v", page, err)
	}
}
