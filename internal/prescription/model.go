package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether the payment status can still change.
// paid and cancelled are one-way.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentCancelled
}

type Medication struct {
	Name     string `json:"nom"`
	Dosage   string `json:"dosage"`
	Form     string `json:"forme"`
	Posology string `json:"posologie"`
	Duration string `json:"duree"`
}

// Valid reports whether the entry carries the two required fields.
func (m Medication) Valid() bool {
	return strings.TrimSpace(m.Name) != "" && strings.TrimSpace(m.Posology) != ""
}

type Prescription struct {
	ID                uuid.UUID
	Number            string
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	ConsultationID    *uuid.UUID
	Diagnosis         string
	Medications       []Medication
	Instructions      string
	TreatmentDuration string
	PaymentStatus     PaymentStatus
	InvoiceID         *uuid.UUID
	CreatedAt         time.Time
}

// FilterMedications drops entries missing a name or a posology. Lenient on
// input, strict on outcome: the caller still has to end up with at least one
// valid entry.
func FilterMedications(meds []Medication) []Medication {
	out := make([]Medication, 0, len(meds))
	for _, m := range meds {
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

// NewPrescriptionNumber builds the immutable, human-readable number printed
// on the rendered document, e.g. ORD-20260828-150405-9b1c.
func NewPrescriptionNumber(now time.Time) string {
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102-150405"), frag)
}
