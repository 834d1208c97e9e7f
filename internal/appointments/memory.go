package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memRecord guards one appointment's state so CAS transitions on different
// appointments never contend.
type memRecord struct {
	mu   sync.Mutex
	appt Appointment
}

// MemoryRepository stores appointment records in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*memRecord
	order   []string // creation order, oldest first
}

// NewMemoryRepository creates an empty in-memory record store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*memRecord)}
}

// Create inserts a new appointment record.
func (r *MemoryRepository) Create(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[appt.ID] = &memRecord{appt: *appt}
	r.order = append(r.order, appt.ID)
	return nil
}

func (r *MemoryRepository) record(id string) *memRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}

// GetByID returns a copy of the appointment.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	rec := r.record(id)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	appt := rec.appt
	return &appt, nil
}

// MarkPaid applies paid=true iff the appointment is still booked and unpaid.
func (r *MemoryRepository) MarkPaid(ctx context.Context, id, method string, at time.Time) (bool, error) {
	rec := r.record(id)
	if rec == nil {
		return false, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.appt.Phase != PhaseBooked || rec.appt.Paid {
		return false, nil
	}
	paidAt := at
	rec.appt.Paid = true
	rec.appt.PayMethod = method
	rec.appt.PaidAt = &paidAt
	return true, nil
}

// Transition moves a booked appointment into a terminal phase.
func (r *MemoryRepository) Transition(ctx context.Context, id string, to Phase) (bool, error) {
	rec := r.record(id)
	if rec == nil {
		return false, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.appt.Phase != PhaseBooked {
		return false, nil
	}
	rec.appt.Phase = to
	return true, nil
}

// ListByPatient returns the patient's appointments, newest first.
func (r *MemoryRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.PatientID == patientID }, 0, 0), nil
}

// ListByDoctor returns the doctor's appointments, newest first.
func (r *MemoryRepository) ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.DoctorID == doctorID }, 0, 0), nil
}

// ListAll returns all appointments, newest first, paginated. limit <= 0
// means no limit.
func (r *MemoryRepository) ListAll(ctx context.Context, limit, offset int) ([]*Appointment, error) {
	return r.list(func(*Appointment) bool { return true }, limit, offset), nil
}

func (r *MemoryRepository) list(match func(*Appointment) bool, limit, offset int) []*Appointment {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	out := make([]*Appointment, 0, len(ids))
	for _, id := range ids {
		rec := r.record(id)
		if rec == nil {
			continue
		}
		rec.mu.Lock()
		appt := rec.appt
		rec.mu.Unlock()
		if match(&appt) {
			out = append(out, &appt)
		}
	}
	// Newest first; creation order breaks timestamp ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(out) {
			return []*Appointment{}
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
