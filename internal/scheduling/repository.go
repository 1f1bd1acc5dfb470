package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotTaken is returned by conditional writes whose overlap guard
	// rejected the row. It is the authoritative double-booking signal.
	ErrSlotTaken = errors.New("slot overlaps an active appointment")
)

// Repository contains all DB interactions needed by the scheduling service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActiveBetween returns the practitioner's non-terminal appointments
	// whose window intersects [from, to).
	ListActiveBetween(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// CreateIfSlotFree inserts the appointment only when no non-terminal
	// appointment of the same practitioner overlaps its window. Returns
	// ErrSlotTaken when the guard rejects the insert.
	CreateIfSlotFree(ctx context.Context, a Appointment) (*Appointment, error)

	// TransitionStatus applies status = to only when the current status is
	// still from. Zero affected rows surfaces as ErrAppointmentNotFound so a
	// lost race is detectable.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Reschedule moves the appointment to a new window unless the window
	// overlaps another active appointment of the same practitioner.
	Reschedule(ctx context.Context, id uuid.UUID, start time.Time, durationMin int) (*Appointment, error)

	UpdateDetails(ctx context.Context, id uuid.UUID, motif, notes *string) (*Appointment, error)

	// Reminder worker
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
