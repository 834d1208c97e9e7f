package directory

import (
	"context"
	"sync"
)

// MemoryDirectory holds doctor and patient profiles in memory. It backs
// development mode and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	doctors  map[string]Doctor
	patients map[string]Patient
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		doctors:  make(map[string]Doctor),
		patients: make(map[string]Patient),
	}
}

// PutDoctor inserts or replaces a doctor profile.
func (d *MemoryDirectory) PutDoctor(doc Doctor) {
	d.mu.Lock()
	d.doctors[doc.ID] = doc
	d.mu.Unlock()
}

// PutPatient inserts or replaces a patient profile.
func (d *MemoryDirectory) PutPatient(p Patient) {
	d.mu.Lock()
	d.patients[p.ID] = p
	d.mu.Unlock()
}

// GetDoctor returns a copy of the doctor profile.
func (d *MemoryDirectory) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &doc, nil
}

// GetPatient returns a copy of the patient profile.
func (d *MemoryDirectory) GetPatient(ctx context.Context, id string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

// CountDoctors returns the number of registered doctors.
func (d *MemoryDirectory) CountDoctors(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.doctors), nil
}

// CountPatients returns the number of registered patients.
func (d *MemoryDirectory) CountPatients(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.patients), nil
}
