package document

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func sampleDocument() PrescriptionDocument {
	paidAt := time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)
	return PrescriptionDocument{
		Number:          "ORD-20260312-143000-9b1c",
		PatientName:     "Amina Benali",
		DoctorName:      "Dr. Karim Haddad",
		DoctorSpecialty: "Cardiologie",
		Diagnosis:       "Hypertension artérielle",
		Medications: []MedicationLine{
			{Name: "Amlodipine", Dosage: "5mg", Form: "comprimé", Posology: "1 fois par jour", Duration: "30 jours"},
		},
		Instructions:  "Contrôle tensionnel hebdomadaire",
		CreatedAt:     paidAt.Add(-2 * time.Hour),
		PaidAt:        &paidAt,
		PaymentMethod: "card",
	}
}

func TestPDFRendererRender(t *testing.T) {
	r := &PDFRenderer{now: func() time.Time { return time.Unix(1760000000, 0) }}

	artifact, err := r.Render(context.Background(), sampleDocument())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if artifact.ContentType != "application/pdf" {
		t.Errorf("content type = %q", artifact.ContentType)
	}
	if !bytes.HasPrefix(artifact.Data, []byte("%PDF-1.4")) {
		t.Errorf("output does not start with the PDF header")
	}
	if !bytes.HasSuffix(bytes.TrimRight(artifact.Data, "\n"), []byte("%%EOF")) {
		t.Errorf("output does not end with %%EOF")
	}

	body := string(artifact.Data)
	for _, want := range []string{"ORD-20260312-143000-9b1c", "Amina Benali", "Amlodipine"} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered document missing %q", want)
		}
	}

	want := ArtifactFilename("ORD-20260312-143000-9b1c", time.Unix(1760000000, 0))
	if artifact.Filename != want {
		t.Errorf("filename = %q, want %q", artifact.Filename, want)
	}
}

func TestPDFRendererDeterministic(t *testing.T) {
	fixed := func() time.Time { return time.Unix(1760000000, 0) }
	a, err := (&PDFRenderer{now: fixed}).Render(context.Background(), sampleDocument())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := (&PDFRenderer{now: fixed}).Render(context.Background(), sampleDocument())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Errorf("two renders of the same document differ")
	}
}

func TestPDFTextEscaping(t *testing.T) {
	doc := sampleDocument()
	doc.Diagnosis = `Fracture (bras gauche) \ contrôle`

	artifact, err := NewPDFRenderer().Render(context.Background(), doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(artifact.Data, []byte(`Fracture \(bras gauche\) \\ contr`)) {
		t.Errorf("parentheses and backslashes not escaped in text stream")
	}
}
