package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SersifAbdeljalil/hospital-management/internal/document"
	"github.com/SersifAbdeljalil/hospital-management/internal/metrics"
	"github.com/SersifAbdeljalil/hospital-management/internal/notification"
)

// ErrNotPaid gates the rendered document: no payment, no signed document.
// The check runs server-side on every download, never trusted from client
// state.
var ErrNotPaid = errors.New("prescription is not paid")

type Service struct {
	repo     Repository
	renderer document.Renderer
	store    document.Store
	notifier notification.Notifier
	logger   *zap.Logger
}

func NewService(repo Repository, renderer document.Renderer, store document.Store, notifier notification.Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

type NewPrescription struct {
	DoctorID          uuid.UUID
	PatientID         uuid.UUID
	ConsultationID    *uuid.UUID
	Diagnosis         string
	Medications       []Medication
	Instructions      string
	TreatmentDuration string
}

// Create assembles and persists a prescription. Medication entries missing a
// name or posology are dropped silently; the result must still contain at
// least one entry or the whole request is rejected before any write.
func (s *Service) Create(ctx context.Context, in NewPrescription) (*Prescription, error) {
	if strings.TrimSpace(in.Diagnosis) == "" {
		return nil, ErrEmptyDiagnosis
	}

	meds := FilterMedications(in.Medications)
	if len(meds) == 0 {
		return nil, ErrNoValidMedication
	}

	created, err := s.repo.Create(ctx, &Prescription{
		Number:            NewPrescriptionNumber(time.Now()),
		PatientID:         in.PatientID,
		DoctorID:          in.DoctorID,
		ConsultationID:    in.ConsultationID,
		Diagnosis:         in.Diagnosis,
		Medications:       meds,
		Instructions:      in.Instructions,
		TreatmentDuration: in.TreatmentDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	metrics.PrescriptionCreated()
	s.notifier.Notify(ctx, created.PatientID, notification.TypePrescriptionCreated,
		"Nouvelle ordonnance",
		fmt.Sprintf("L'ordonnance %s est disponible après règlement.", created.Number))

	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete is only allowed while the prescription is still pending.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeletePending(ctx, id)
}

type PayResult struct {
	PrescriptionID uuid.UUID
	InvoiceID      uuid.UUID
	AmountPaid     float64
	Status         PaymentStatus
}

// Pay settles a prescription. The repository runs the invoice, prescription
// and payment writes as one atomic unit; this layer only adds the
// best-effort notification, which never rolls anything back.
func (s *Service) Pay(ctx context.Context, prescriptionID, payerID uuid.UUID, amount float64, method string) (*PayResult, error) {
	invoice, err := s.repo.Pay(ctx, PaymentInput{
		PrescriptionID: prescriptionID,
		PayerID:        payerID,
		Amount:         amount,
		Method:         method,
	})
	if err != nil {
		return nil, err
	}

	metrics.PrescriptionPaid()
	s.notifier.Notify(ctx, invoice.PatientID, notification.TypePaymentReceived,
		"Paiement reçu",
		fmt.Sprintf("Votre paiement de %.2f a été enregistré (facture %s).", invoice.AmountPaid, invoice.Number))

	return &PayResult{
		PrescriptionID: prescriptionID,
		InvoiceID:      invoice.ID,
		AmountPaid:     invoice.AmountPaid,
		Status:         PaymentPaid,
	}, nil
}

// RenderDocument produces the signed PDF artifact. The paid gate is
// re-verified here against the stored row regardless of what the caller
// claims. requester restricts access to the owning patient; uuid.Nil skips
// the ownership check for staff callers.
func (s *Service) RenderDocument(ctx context.Context, id uuid.UUID, requester uuid.UUID) (*document.Artifact, error) {
	data, err := s.repo.GetDocumentData(ctx, id)
	if err != nil {
		return nil, err
	}

	if requester != uuid.Nil && data.Prescription.PatientID != requester {
		return nil, ErrNotOwner
	}
	if data.Prescription.PaymentStatus != PaymentPaid {
		return nil, ErrNotPaid
	}

	doc := document.PrescriptionDocument{
		Number:            data.Prescription.Number,
		PatientName:       data.PatientName,
		DoctorName:        data.DoctorName,
		DoctorSpecialty:   data.DoctorSpecialty,
		Diagnosis:         data.Prescription.Diagnosis,
		Instructions:      data.Prescription.Instructions,
		TreatmentDuration: data.Prescription.TreatmentDuration,
		CreatedAt:         data.Prescription.CreatedAt,
		PaidAt:            data.PaidAt,
		PaymentMethod:     data.PaymentMethod,
	}
	for _, m := range data.Prescription.Medications {
		doc.Medications = append(doc.Medications, document.MedicationLine{
			Name:     m.Name,
			Dosage:   m.Dosage,
			Form:     m.Form,
			Posology: m.Posology,
			Duration: m.Duration,
		})
	}

	artifact, err := s.renderer.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("render prescription document: %w", err)
	}

	if err := s.store.Save(ctx, artifact); err != nil {
		// The bytes are already in hand; a failed archive write should not
		// block the download.
		s.logger.Warn("failed to archive rendered document",
			zap.String("prescription_id", id.String()),
			zap.String("filename", artifact.Filename),
			zap.Error(err),
		)
	}

	metrics.DocumentRendered()
	return artifact, nil
}
