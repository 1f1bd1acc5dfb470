package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/SersifAbdeljalil/hospital-management/internal/billing"
)

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")

	// ErrAlreadyPaid is the loser's outcome of the double-payment race as
	// well as the answer to an honest second attempt.
	ErrAlreadyPaid = errors.New("prescription is already paid")

	ErrNotOwner          = errors.New("payer is not the owning patient")
	ErrPrescriptionPaid  = errors.New("prescription is paid and cannot be deleted")
	ErrNoValidMedication = errors.New("prescription needs at least one valid medication")
	ErrEmptyDiagnosis    = errors.New("diagnosis must not be empty")
)

// PaymentInput describes one payment attempt against a prescription.
type PaymentInput struct {
	PrescriptionID uuid.UUID
	PayerID        uuid.UUID
	Amount         float64
	Method         string
	Now            time.Time
}

// Repository contains all DB interactions needed by the prescription service.
type Repository interface {
	Create(ctx context.Context, p *Prescription) (*Prescription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)

	// DeletePending removes the prescription only while its payment status
	// is still pending. ErrPrescriptionPaid when the guard rejects it.
	DeletePending(ctx context.Context, id uuid.UUID) error

	// Pay settles a prescription atomically: lock the prescription row,
	// re-check status and ownership, create or settle the invoice, flip the
	// prescription to paid and append the payment record. All inside one
	// transaction.
	Pay(ctx context.Context, in PaymentInput) (*billing.Invoice, error)

	// GetDocumentData joins the patient and doctor display fields plus the
	// latest payment, for the renderer.
	GetDocumentData(ctx context.Context, id uuid.UUID) (*DocumentData, error)
}

// DocumentData is the fully resolved prescription handed to the renderer.
type DocumentData struct {
	Prescription    Prescription
	PatientName     string
	DoctorName      string
	DoctorSpecialty string
	PaidAt          *time.Time
	PaymentMethod   string
}
