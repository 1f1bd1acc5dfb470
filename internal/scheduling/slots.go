package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IsSlotFree answers whether the practitioner is free during
// [start, start+duration). exclude lets a reschedule ignore the appointment
// being moved. This is the fast pre-check only; the conditional insert in
// the repository is what finally enforces the invariant.
func (s *Service) IsSlotFree(ctx context.Context, practitionerID uuid.UUID, start time.Time, durationMin int, exclude *uuid.UUID) (bool, error) {
	if durationMin <= 0 {
		return false, nil
	}

	end := start.Add(time.Duration(durationMin) * time.Minute)
	active, err := s.repo.ListActiveBetween(ctx, practitionerID, start, end)
	if err != nil {
		return false, fmt.Errorf("list active appointments: %w", err)
	}

	for _, a := range active {
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if Overlaps(start, durationMin, a.StartTime, a.DurationMin) {
			return false, nil
		}
	}
	return true, nil
}

// ListAvailableSlots enumerates the open fixed-width slots of the given day.
// The result is a pure function of the current appointment state: nothing is
// cached between calls. A day the clinic is closed yields an empty list, and
// a slot that would run past closing time is never offered.
func (s *Service) ListAvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time, slotMin int) ([]time.Time, error) {
	if slotMin <= 0 {
		slotMin = s.cfg.SlotMinutes
	}

	// Unknown practitioner is an error on any day, including closed ones.
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	open, close, ok := s.cfg.WorkingWindow(date)
	if !ok {
		return []time.Time{}, nil
	}

	booked, err := s.repo.ListActiveBetween(ctx, practitionerID, open, close)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}

	width := time.Duration(slotMin) * time.Minute
	slots := []time.Time{}
	for t := open; !t.Add(width).After(close); t = t.Add(width) {
		free := true
		for _, a := range booked {
			if Overlaps(t, slotMin, a.StartTime, a.DurationMin) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, t)
		}
	}

	return slots, nil
}
