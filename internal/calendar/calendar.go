// Package calendar owns doctor slot occupancy. It is the only place in the
// system that needs real mutual exclusion: two bookings racing on the same
// (doctor, date, time) must resolve to exactly one reservation.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadDateKey is returned for slot dates not shaped like "10_6_2025".
	ErrBadDateKey = errors.New("calendar: invalid slot date key")
	// ErrBadSlotTime is returned for empty or oversized time tokens.
	ErrBadSlotTime = errors.New("calendar: invalid slot time")
)

// Store is the authoritative source of truth for slot availability.
// Reserve must be atomic relative to other reservations for the same
// doctor and date: it returns false, nil when the slot is already taken.
// Release is idempotent; releasing a free slot is not an error.
type Store interface {
	Reserve(ctx context.Context, doctorID, dateKey, slotTime string) (bool, error)
	Release(ctx context.Context, doctorID, dateKey, slotTime string) error
	BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error)
}

// ValidateDateKey checks a "d_m_yyyy" slot date key and that it names a
// real calendar date.
func ValidateDateKey(key string) error {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return fmt.Errorf("%w: %q", ErrBadDateKey, key)
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return fmt.Errorf("%w: %q", ErrBadDateKey, key)
	}
	if year < 1970 || year > 9999 || month < 1 || month > 12 || day < 1 || day > 31 {
		return fmt.Errorf("%w: %q", ErrBadDateKey, key)
	}
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2); detect it.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != time.Month(month) || d.Year() != year {
		return fmt.Errorf("%w: %q", ErrBadDateKey, key)
	}
	return nil
}

// DateOf converts a valid date key to its UTC midnight time.
func DateOf(key string) (time.Time, error) {
	if err := ValidateDateKey(key); err != nil {
		return time.Time{}, err
	}
	parts := strings.Split(key, "_")
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// ValidateSlotTime checks a time-of-day token such as "10:00 AM".
func ValidateSlotTime(slot string) error {
	slot = strings.TrimSpace(slot)
	if slot == "" || len(slot) > 16 {
		return fmt.Errorf("%w: %q", ErrBadSlotTime, slot)
	}
	return nil
}
