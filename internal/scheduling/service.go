package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SersifAbdeljalil/hospital-management/internal/config"
	"github.com/SersifAbdeljalil/hospital-management/internal/metrics"
	"github.com/SersifAbdeljalil/hospital-management/internal/notification"
	redisclient "github.com/SersifAbdeljalil/hospital-management/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentTransition  = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentReminded    = "APPOINTMENT_REMINDED"
)

var (
	// ErrSlotUnavailable means the request was well-formed but the window is
	// taken. Callers must be able to tell this apart from bad input so the
	// UI can prompt re-selection.
	ErrSlotUnavailable = errors.New("slot is not available")

	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")
	ErrAppointmentTerminal = errors.New("appointment is in a terminal state")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidSchedule     = errors.New("appointment start and duration are invalid")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notification.Notifier
	cfg      config.Config
	logger   *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier notification.Notifier, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

type NewAppointment struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	StartTime      time.Time
	DurationMin    int
	Motif          string
	Notes          string
}

type AppointmentUpdate struct {
	Status      *AppointmentStatus
	StartTime   *time.Time
	DurationMin *int
	Motif       *string
	Notes       *string
}

// CreateAppointment books a window for a patient. A distributed lock keeps
// concurrent requests for the same window from hammering the database, and
// the conditional insert underneath settles whoever slips past the lock.
func (s *Service) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	if in.DurationMin <= 0 {
		return nil, ErrInvalidSchedule
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetPractitionerByID(ctx, in.PractitionerID); err != nil {
		if errors.Is(err, ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	// Fast feedback before taking the lock. Not authoritative.
	free, err := s.IsSlotFree(ctx, in.PractitionerID, in.StartTime, in.DurationMin, nil)
	if err != nil {
		return nil, err
	}
	if !free {
		metrics.SlotConflict()
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, in.PractitionerID, in.StartTime, func(lockCtx context.Context) error {
		appt, err := s.repo.CreateIfSlotFree(lockCtx, Appointment{
			PatientID:      in.PatientID,
			PractitionerID: in.PractitionerID,
			StartTime:      in.StartTime,
			DurationMin:    in.DurationMin,
			Motif:          in.Motif,
			Notes:          in.Notes,
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotTaken) {
			metrics.SlotConflict()
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	metrics.AppointmentBooked()
	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"patient_id":      in.PatientID.String(),
		"practitioner_id": in.PractitionerID.String(),
		"start_time":      in.StartTime,
		"duration_min":    in.DurationMin,
	})

	when := created.StartTime.Format("02/01/2006 15:04")
	s.notifier.Notify(ctx, created.PatientID, notification.TypeAppointmentCreated,
		"Rendez-vous planifié",
		fmt.Sprintf("Votre rendez-vous du %s est enregistré.", when))
	s.notifier.Notify(ctx, created.PractitionerID, notification.TypeAppointmentCreated,
		"Nouveau rendez-vous",
		fmt.Sprintf("Un rendez-vous a été planifié le %s.", when))

	return created, nil
}

// UpdateAppointment applies a status transition, a reschedule, or a detail
// edit, in that order of precedence. Transitions are re-verified by the
// conditional update so a concurrent transition loses cleanly.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.StartTime != nil || upd.DurationMin != nil {
		appt, err = s.reschedule(ctx, appt, upd)
		if err != nil {
			return nil, err
		}
	}

	if upd.Status != nil {
		appt, err = s.transition(ctx, appt, *upd.Status)
		if err != nil {
			return nil, err
		}
	}

	if upd.Motif != nil || upd.Notes != nil {
		appt, err = s.repo.UpdateDetails(ctx, id, upd.Motif, upd.Notes)
		if err != nil {
			return nil, err
		}
	}

	s.notifier.Notify(ctx, appt.PatientID, notification.TypeAppointmentUpdated,
		"Rendez-vous mis à jour",
		fmt.Sprintf("Votre rendez-vous du %s a été mis à jour.", appt.StartTime.Format("02/01/2006 15:04")))

	return appt, nil
}

// CancelAppointment is a soft transition to cancelled, never a row delete.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	appt, err = s.transition(ctx, appt, StatusCancelled)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, appt.PatientID, notification.TypeAppointmentCancelled,
		"Rendez-vous annulé",
		fmt.Sprintf("Votre rendez-vous du %s a été annulé.", appt.StartTime.Format("02/01/2006 15:04")))

	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) transition(ctx context.Context, appt *Appointment, to AppointmentStatus) (*Appointment, error) {
	if appt.Status.IsTerminal() {
		return nil, ErrAppointmentTerminal
	}
	if !to.Valid() || !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.TransitionStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row moved under us between the read and the conditional
			// write. State conflict, not a missing entity.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("transition appointment: %w", err)
	}

	metrics.AppointmentTransition(string(appt.Status), string(to))
	s.logEvent(ctx, updated.ID, EventAppointmentTransition, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

func (s *Service) reschedule(ctx context.Context, appt *Appointment, upd AppointmentUpdate) (*Appointment, error) {
	if appt.Status.IsTerminal() {
		return nil, ErrAppointmentTerminal
	}

	start := appt.StartTime
	if upd.StartTime != nil {
		start = *upd.StartTime
	}
	durationMin := appt.DurationMin
	if upd.DurationMin != nil {
		durationMin = *upd.DurationMin
	}
	if durationMin <= 0 {
		return nil, ErrInvalidSchedule
	}

	free, err := s.IsSlotFree(ctx, appt.PractitionerID, start, durationMin, &appt.ID)
	if err != nil {
		return nil, err
	}
	if !free {
		metrics.SlotConflict()
		return nil, ErrSlotUnavailable
	}

	var moved *Appointment
	err = s.locker.WithBookingLock(ctx, appt.PractitionerID, start, func(lockCtx context.Context) error {
		m, err := s.repo.Reschedule(lockCtx, appt.ID, start, durationMin)
		if err != nil {
			return err
		}
		moved = m
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotTaken) {
			metrics.SlotConflict()
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}

	s.logEvent(ctx, moved.ID, EventAppointmentRescheduled, map[string]any{
		"start_time":   start,
		"duration_min": durationMin,
	})

	return moved, nil
}

// SendReminders is called periodically by the reminder worker. Each due
// appointment is notified at most once thanks to the reminded_at guard.
func (s *Service) SendReminders(ctx context.Context) error {
	now := time.Now()
	due, err := s.repo.FindDueReminders(ctx, now, now.Add(s.cfg.ReminderLead))
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, appt := range due {
		s.notifier.Notify(ctx, appt.PatientID, notification.TypeAppointmentReminder,
			"Rappel de rendez-vous",
			fmt.Sprintf("Vous avez un rendez-vous le %s.", appt.StartTime.Format("02/01/2006 15:04")))

		if err := s.repo.MarkReminded(ctx, appt.ID, now); err != nil {
			s.logger.Warn("failed to mark appointment reminded",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentReminded, map[string]any{})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
