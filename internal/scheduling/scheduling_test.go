package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SersifAbdeljalil/hospital-management/internal/config"
	"github.com/SersifAbdeljalil/hospital-management/internal/notification"
)

// In-memory test doubles shared by the package tests. The fake repository
// mirrors the SQL guards: conditional insert with overlap check, conditional
// status update keyed on the expected current status.

type fakeRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]*Patient
	practitioners map[uuid.UUID]*Practitioner
	appointments  map[uuid.UUID]*Appointment
	events        []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:      make(map[uuid.UUID]*Patient),
		practitioners: make(map[uuid.UUID]*Practitioner),
		appointments:  make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) addPatient() uuid.UUID {
	id := uuid.New()
	r.patients[id] = &Patient{ID: id, FullName: "Test Patient"}
	return id
}

func (r *fakeRepo) addPractitioner() uuid.UUID {
	id := uuid.New()
	r.practitioners[id] = &Practitioner{ID: id, FullName: "Test Practitioner"}
	return id
}

func (r *fakeRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (r *fakeRepo) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return p, nil
}

func (r *fakeRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) ListActiveBetween(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.PractitionerID != practitionerID || a.Status.IsTerminal() {
			continue
		}
		if a.StartTime.Before(to) && a.End().After(from) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateIfSlotFree(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.appointments {
		if other.PractitionerID != a.PractitionerID || other.Status.IsTerminal() {
			continue
		}
		if Overlaps(a.StartTime, a.DurationMin, other.StartTime, other.DurationMin) {
			return nil, ErrSlotTaken
		}
	}

	a.ID = uuid.New()
	a.Status = StatusPlanned
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	stored := a
	r.appointments[a.ID] = &stored
	cp := stored
	return &cp, nil
}

func (r *fakeRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) Reschedule(ctx context.Context, id uuid.UUID, start time.Time, durationMin int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status.IsTerminal() {
		return nil, ErrSlotTaken
	}
	for _, other := range r.appointments {
		if other.ID == id || other.PractitionerID != a.PractitionerID || other.Status.IsTerminal() {
			continue
		}
		if Overlaps(start, durationMin, other.StartTime, other.DurationMin) {
			return nil, ErrSlotTaken
		}
	}
	a.StartTime = start
	a.DurationMin = durationMin
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) UpdateDetails(ctx context.Context, id uuid.UUID, motif, notes *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if motif != nil {
		a.Motif = *motif
	}
	if notes != nil {
		a.Notes = *notes
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if (a.Status == StatusPlanned || a.Status == StatusConfirmed) &&
			a.RemindedAt == nil &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.appointments[id]; ok && a.RemindedAt == nil {
		t := at
		a.RemindedAt = &t
	}
	return nil
}

func (r *fakeRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// fakeLocker runs the critical section inline.
type fakeLocker struct{}

func (fakeLocker) WithBookingLock(ctx context.Context, practitionerID uuid.UUID, start time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeNotifier records emitted notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) Notify(ctx context.Context, recipientID uuid.UUID, typ, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, typ)
}

var _ notification.Notifier = (*fakeNotifier)(nil)

func testConfig() config.Config {
	return config.Config{
		ClinicOpen:  "08:00",
		ClinicClose: "12:00",
		WorkingDays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		SlotMinutes:  30,
		ReminderLead: 24 * time.Hour,
	}
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// dayAt returns a Monday far in the future at the given clock time.
func dayAt(hour, minute int) time.Time {
	base := time.Date(2030, time.June, 3, 0, 0, 0, 0, time.Local) // a Monday
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}
