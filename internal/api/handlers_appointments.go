package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/SersifAbdeljalil/hospital-management/internal/scheduling"
)

var validate = validator.New()

// SchedulingService is the slice of the scheduling service the handlers use.
type SchedulingService interface {
	CreateAppointment(ctx context.Context, in scheduling.NewAppointment) (*scheduling.Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, upd scheduling.AppointmentUpdate) (*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	ListAvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time, slotMin int) ([]time.Time, error)
}

func listAvailabilityHandler(svc SchedulingService, defaultSlotMin int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "practitionerId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitionerId must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slotMin := defaultSlotMin
		if raw := r.URL.Query().Get("duree"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duree must be a positive integer of minutes")
				return
			}
			slotMin = n
		}

		slots, err := svc.ListAvailableSlots(r.Context(), practitionerID, date, slotMin)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := AvailabilityResponse{Success: true, Slots: make([]SlotResponse, 0, len(slots))}
		for _, t := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Time: t.Format("15:04")})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		start, err := time.Parse(time.RFC3339, req.DateHeure)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_heure", "date_heure must be RFC3339")
			return
		}

		patientID, _ := uuid.Parse(req.PatientID)
		medecinID, _ := uuid.Parse(req.MedecinID)

		appt, err := svc.CreateAppointment(r.Context(), scheduling.NewAppointment{
			PatientID:      patientID,
			PractitionerID: medecinID,
			StartTime:      start,
			DurationMin:    req.Duree,
			Motif:          req.Motif,
			Notes:          req.Notes,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		upd := scheduling.AppointmentUpdate{
			Motif: req.Motif,
			Notes: req.Notes,
		}
		if req.Statut != nil {
			st := scheduling.AppointmentStatus(*req.Statut)
			upd.Status = &st
		}
		if req.DateHeure != nil {
			start, err := time.Parse(time.RFC3339, *req.DateHeure)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_heure", "date_heure must be RFC3339")
				return
			}
			upd.StartTime = &start
		}
		upd.DurationMin = req.Duree

		appt, err := svc.UpdateAppointment(r.Context(), id, upd)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleSchedulingError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, scheduling.ErrPatientNotFound),
		errors.Is(err, scheduling.ErrPractitionerNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "the requested time slot is not available")
	case errors.Is(err, scheduling.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrAppointmentTerminal),
		errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		return false
	}
	return true
}
