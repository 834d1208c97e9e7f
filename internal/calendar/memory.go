package calendar

import (
	"context"
	"sort"
	"sync"
)

// day holds occupancy for one (doctor, date). Check-and-insert runs under
// the day's own mutex so different doctors and dates never contend.
type day struct {
	mu    sync.Mutex
	slots map[string]struct{}
}

// MemoryStore keeps occupancy in process memory. Used when no database is
// configured and throughout the test suite.
type MemoryStore struct {
	mu   sync.Mutex
	days map[string]*day // key: doctorID|dateKey
	keys map[string][]string
}

// NewMemoryStore creates an empty in-memory calendar store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days: make(map[string]*day),
		keys: make(map[string][]string),
	}
}

func (s *MemoryStore) dayFor(doctorID, dateKey string, create bool) *day {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := doctorID + "|" + dateKey
	d, ok := s.days[key]
	if !ok && create {
		d = &day{slots: make(map[string]struct{})}
		s.days[key] = d
		s.keys[doctorID] = append(s.keys[doctorID], dateKey)
	}
	return d
}

// Reserve atomically checks and inserts the slot, returning false when it
// is already occupied.
func (s *MemoryStore) Reserve(ctx context.Context, doctorID, dateKey, slotTime string) (bool, error) {
	d := s.dayFor(doctorID, dateKey, true)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.slots[slotTime]; taken {
		return false, nil
	}
	d.slots[slotTime] = struct{}{}
	return true, nil
}

// Release frees the slot; a missing entry is tolerated.
func (s *MemoryStore) Release(ctx context.Context, doctorID, dateKey, slotTime string) error {
	d := s.dayFor(doctorID, dateKey, false)
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.slots, slotTime)
	return nil
}

// BookedSlots returns a copy of the doctor's occupancy, times sorted for
// stable output. Empty dates are omitted.
func (s *MemoryStore) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	s.mu.Lock()
	dateKeys := append([]string(nil), s.keys[doctorID]...)
	s.mu.Unlock()

	out := make(map[string][]string)
	for _, dateKey := range dateKeys {
		d := s.dayFor(doctorID, dateKey, false)
		if d == nil {
			continue
		}
		d.mu.Lock()
		times := make([]string, 0, len(d.slots))
		for t := range d.slots {
			times = append(times, t)
		}
		d.mu.Unlock()
		if len(times) == 0 {
			continue
		}
		sort.Strings(times)
		out[dateKey] = times
	}
	return out, nil
}
