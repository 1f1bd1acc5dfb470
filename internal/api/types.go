package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/SersifAbdeljalil/hospital-management/internal/prescription"
	"github.com/SersifAbdeljalil/hospital-management/internal/scheduling"
)

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	MedecinID string `json:"medecin_id" validate:"required,uuid"`
	DateHeure string `json:"date_heure" validate:"required"`
	Duree     int    `json:"duree" validate:"required,min=5,max=480"`
	Motif     string `json:"motif" validate:"required"`
	Notes     string `json:"notes"`
}

type UpdateAppointmentRequest struct {
	Statut    *string `json:"statut" validate:"omitempty,oneof=planned confirmed in_progress completed cancelled no_show"`
	DateHeure *string `json:"date_heure"`
	Duree     *int    `json:"duree" validate:"omitempty,min=5,max=480"`
	Motif     *string `json:"motif"`
	Notes     *string `json:"notes"`
}

// MedicationRequest entries are deliberately not validated field-by-field:
// incomplete entries are filtered out downstream, and only an empty filtered
// result rejects the request.
type MedicationRequest struct {
	Nom       string `json:"nom"`
	Dosage    string `json:"dosage"`
	Forme     string `json:"forme"`
	Posologie string `json:"posologie"`
	Duree     string `json:"duree"`
}

type CreatePrescriptionRequest struct {
	PatientID       string              `json:"patient_id" validate:"required,uuid"`
	Diagnostic      string              `json:"diagnostic" validate:"required"`
	Medicaments     []MedicationRequest `json:"medicaments" validate:"required,min=1"`
	Instructions    string              `json:"instructions"`
	DureeTraitement string              `json:"duree_traitement"`
	ConsultationID  *string             `json:"consultation_id" validate:"omitempty,uuid"`
}

type PayPrescriptionRequest struct {
	Montant         float64 `json:"montant" validate:"required,gt=0"`
	MethodePaiement string  `json:"methode_paiement" validate:"required"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	MedecinID uuid.UUID `json:"medecin_id"`
	DateHeure time.Time `json:"date_heure"`
	Duree     int       `json:"duree"`
	Statut    string    `json:"statut"`
	Motif     string    `json:"motif"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		MedecinID: a.PractitionerID,
		DateHeure: a.StartTime,
		Duree:     a.DurationMin,
		Statut:    string(a.Status),
		Motif:     a.Motif,
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
	}
}

type SlotResponse struct {
	Time string `json:"time"`
}

type AvailabilityResponse struct {
	Success bool           `json:"success"`
	Slots   []SlotResponse `json:"slots"`
}

type PrescriptionResponse struct {
	ID               uuid.UUID                 `json:"id"`
	NumeroOrdonnance string                    `json:"numero_ordonnance"`
	PatientID        uuid.UUID                 `json:"patient_id"`
	MedecinID        uuid.UUID                 `json:"medecin_id"`
	ConsultationID   *uuid.UUID                `json:"consultation_id,omitempty"`
	Diagnostic       string                    `json:"diagnostic"`
	Medicaments      []prescription.Medication `json:"medicaments"`
	Instructions     string                    `json:"instructions,omitempty"`
	DureeTraitement  string                    `json:"duree_traitement,omitempty"`
	StatutPaiement   string                    `json:"statut_paiement"`
	FactureID        *uuid.UUID                `json:"facture_id,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}

// paymentStatusWire maps the stored status to the French wire vocabulary
// the frontend expects.
func paymentStatusWire(s prescription.PaymentStatus) string {
	switch s {
	case prescription.PaymentPaid:
		return "payee"
	case prescription.PaymentCancelled:
		return "annulee"
	default:
		return "en_attente"
	}
}

func toPrescriptionResponse(p *prescription.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:               p.ID,
		NumeroOrdonnance: p.Number,
		PatientID:        p.PatientID,
		MedecinID:        p.DoctorID,
		ConsultationID:   p.ConsultationID,
		Diagnostic:       p.Diagnosis,
		Medicaments:      p.Medications,
		Instructions:     p.Instructions,
		DureeTraitement:  p.TreatmentDuration,
		StatutPaiement:   paymentStatusWire(p.PaymentStatus),
		FactureID:        p.InvoiceID,
		CreatedAt:        p.CreatedAt,
	}
}

type PayResponse struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
	MontantPaye    float64   `json:"montant_paye"`
	Statut         string    `json:"statut"`
}
