package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/SersifAbdeljalil/hospital-management/internal/document"
	"github.com/SersifAbdeljalil/hospital-management/internal/prescription"
)

// PrescriptionService is the slice of the prescription service the handlers
// use.
type PrescriptionService interface {
	Create(ctx context.Context, in prescription.NewPrescription) (*prescription.Prescription, error)
	Get(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Pay(ctx context.Context, prescriptionID, payerID uuid.UUID, amount float64, method string) (*prescription.PayResult, error)
	RenderDocument(ctx context.Context, id, requester uuid.UUID) (*document.Artifact, error)
}

func createPrescriptionHandler(svc PrescriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := GetIdentity(r.Context())
		if ident.UserID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing caller identity")
			return
		}

		var req CreatePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		patientID, _ := uuid.Parse(req.PatientID)

		var consultationID *uuid.UUID
		if req.ConsultationID != nil {
			id, _ := uuid.Parse(*req.ConsultationID)
			consultationID = &id
		}

		meds := make([]prescription.Medication, 0, len(req.Medicaments))
		for _, m := range req.Medicaments {
			meds = append(meds, prescription.Medication{
				Name:     m.Nom,
				Dosage:   m.Dosage,
				Form:     m.Forme,
				Posology: m.Posologie,
				Duration: m.Duree,
			})
		}

		created, err := svc.Create(r.Context(), prescription.NewPrescription{
			DoctorID:          ident.UserID,
			PatientID:         patientID,
			ConsultationID:    consultationID,
			Diagnosis:         req.Diagnostic,
			Medications:       meds,
			Instructions:      req.Instructions,
			TreatmentDuration: req.DureeTraitement,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusCreated, toPrescriptionResponse(created))
	}
}

func getPrescriptionHandler(svc PrescriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		p, err := svc.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

func deletePrescriptionHandler(svc PrescriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

func payPrescriptionHandler(svc PrescriptionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := GetIdentity(r.Context())
		if ident.UserID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing caller identity")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		var req PayPrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		result, err := svc.Pay(r.Context(), id, ident.UserID, req.Montant, req.MethodePaiement)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeData(w, http.StatusOK, PayResponse{
			PrescriptionID: result.PrescriptionID,
			InvoiceID:      result.InvoiceID,
			MontantPaye:    result.AmountPaid,
			Statut:         "payee",
		})
	}
}

// downloadPrescriptionPDFHandler re-checks the payment gate server-side on
// every request; a forged client-side "paid" flag changes nothing here.
// Rendering is bounded by renderTimeout so a slow render cannot hold the
// request open indefinitely.
func downloadPrescriptionPDFHandler(svc PrescriptionService, renderTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		ident := GetIdentity(r.Context())
		requester := uuid.Nil
		if ident.Role == "patient" {
			requester = ident.UserID
		}

		ctx := r.Context()
		if renderTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, renderTimeout)
			defer cancel()
		}

		artifact, err := svc.RenderDocument(ctx, id, requester)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", artifact.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(artifact.Data)
	}
}

func handlePrescriptionError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, prescription.ErrPrescriptionNotFound),
		errors.Is(err, prescription.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, prescription.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "already_paid", "prescription is already paid")
	case errors.Is(err, prescription.ErrPrescriptionPaid):
		writeError(w, http.StatusConflict, "prescription_paid", "a paid prescription cannot be deleted")
	case errors.Is(err, prescription.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", "you do not have access to this prescription")
	case errors.Is(err, prescription.ErrNotPaid):
		writeError(w, http.StatusForbidden, "payment_required", "the prescription must be paid before the document is released")
	case errors.Is(err, prescription.ErrNoValidMedication),
		errors.Is(err, prescription.ErrEmptyDiagnosis):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		return false
	}
	return true
}

// handleDomainError maps sentinel errors from every domain package onto the
// HTTP taxonomy. Anything unmapped is a 5xx and keeps its details out of the
// response.
func handleDomainError(w http.ResponseWriter, err error) {
	if handleSchedulingError(w, err) {
		return
	}
	if handlePrescriptionError(w, err) {
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}
