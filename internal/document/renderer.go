package document

import (
	"context"
	"fmt"
	"time"
)

// PrescriptionDocument is the fully resolved, paid prescription handed to a
// renderer. Display fields are already joined in; the renderer does not
// touch the database.
type PrescriptionDocument struct {
	Number            string
	PatientName       string
	DoctorName        string
	DoctorSpecialty   string
	Diagnosis         string
	Medications       []MedicationLine
	Instructions      string
	TreatmentDuration string
	CreatedAt         time.Time
	PaidAt            *time.Time
	PaymentMethod     string
}

type MedicationLine struct {
	Name     string
	Dosage   string
	Form     string
	Posology string
	Duration string
}

// Artifact is the rendered binary plus its storage naming. Path is relative
// to the document directory, suitable for building a download URL.
type Artifact struct {
	Filename    string
	Path        string
	ContentType string
	Data        []byte
}

// Renderer turns a paid prescription into a binary artifact. The caller is
// responsible for enforcing the payment gate before invoking it.
type Renderer interface {
	Render(ctx context.Context, doc PrescriptionDocument) (*Artifact, error)
}

// Store archives rendered artifacts.
type Store interface {
	Save(ctx context.Context, a *Artifact) error
}

// ArtifactFilename embeds the prescription number and a timestamp so
// regenerations never collide. Not content-addressed, by convention.
func ArtifactFilename(number string, now time.Time) string {
	return fmt.Sprintf("%s_%d.pdf", number, now.Unix())
}
