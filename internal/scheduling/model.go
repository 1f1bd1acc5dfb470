package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPlanned    AppointmentStatus = "planned"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// IsTerminal reports whether no further transition is permitted.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Valid reports whether the value is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition encodes the appointment lifecycle. Cancellation and no-show
// are reachable from any non-terminal state; the rest is a straight line
// planned -> confirmed -> in_progress -> completed.
func CanTransition(from, to AppointmentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusCancelled, StatusNoShow:
		return true
	case StatusConfirmed:
		return from == StatusPlanned
	case StatusInProgress:
		return from == StatusConfirmed
	case StatusCompleted:
		return from == StatusInProgress
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	FullName  string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	FullName  string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	StartTime      time.Time
	DurationMin    int
	Status         AppointmentStatus
	Motif          string
	Notes          string
	RemindedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// End returns the exclusive end of the appointment window.
func (a Appointment) End() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMin) * time.Minute)
}

// Overlaps tests two half-open windows [start, start+duration). A window
// ending exactly when another starts does not conflict.
func Overlaps(aStart time.Time, aMin int, bStart time.Time, bMin int) bool {
	aEnd := aStart.Add(time.Duration(aMin) * time.Minute)
	bEnd := bStart.Add(time.Duration(bMin) * time.Minute)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
