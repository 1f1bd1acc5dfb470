package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// PDFRenderer is the built-in renderer: a single A4 page with the
// prescription fields and the doctor's deterministic signature stroke.
// It writes the PDF primitives directly; the layout is deliberately plain.
type PDFRenderer struct {
	now func() time.Time
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{now: time.Now}
}

const (
	pageWidth  = 595.0 // A4 in points
	pageHeight = 842.0
	marginLeft = 56.0
	sigWidth   = 160.0
	sigHeight  = 48.0
)

func (r *PDFRenderer) Render(ctx context.Context, doc PrescriptionDocument) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := buildContentStream(doc)
	data := assemblePDF(content)

	now := r.now()
	filename := ArtifactFilename(doc.Number, now)

	return &Artifact{
		Filename:    filename,
		Path:        filename,
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func buildContentStream(doc PrescriptionDocument) []byte {
	var b bytes.Buffer

	y := pageHeight - 72.0
	line := func(size float64, text string) {
		fmt.Fprintf(&b, "BT /F1 %.0f Tf %.1f %.1f Td (%s) Tj ET\n", size, marginLeft, y, escapePDFText(text))
		y -= size * 1.6
	}

	line(18, "ORDONNANCE MEDICALE")
	line(11, fmt.Sprintf("N° %s", doc.Number))
	line(11, fmt.Sprintf("Date: %s", doc.CreatedAt.Format("02/01/2006")))
	y -= 8
	line(12, fmt.Sprintf("Dr %s", doc.DoctorName))
	if doc.DoctorSpecialty != "" {
		line(10, doc.DoctorSpecialty)
	}
	y -= 8
	line(12, fmt.Sprintf("Patient: %s", doc.PatientName))
	line(11, fmt.Sprintf("Diagnostic: %s", doc.Diagnosis))
	y -= 8
	line(12, "Prescription:")
	for i, m := range doc.Medications {
		entry := fmt.Sprintf("%d. %s", i+1, m.Name)
		if m.Dosage != "" {
			entry += " " + m.Dosage
		}
		if m.Form != "" {
			entry += " (" + m.Form + ")"
		}
		line(11, entry)
		detail := "   " + m.Posology
		if m.Duration != "" {
			detail += " - " + m.Duration
		}
		line(10, detail)
	}
	if doc.Instructions != "" {
		y -= 8
		line(11, fmt.Sprintf("Instructions: %s", doc.Instructions))
	}
	if doc.TreatmentDuration != "" {
		line(11, fmt.Sprintf("Durée du traitement: %s", doc.TreatmentDuration))
	}
	if doc.PaidAt != nil {
		y -= 8
		line(9, fmt.Sprintf("Réglée le %s (%s)", doc.PaidAt.Format("02/01/2006 15:04"), doc.PaymentMethod))
	}

	// Signature block, bottom right. The stroke geometry depends only on
	// the doctor's name.
	sigX := pageWidth - marginLeft - sigWidth
	sigY := 110.0
	fmt.Fprintf(&b, "BT /F1 9 Tf %.1f %.1f Td (Signature:) Tj ET\n", sigX, sigY+sigHeight+10)
	b.WriteString("0.8 w\n")
	for _, c := range SignatureCurves(doc.DoctorName, sigWidth, sigHeight) {
		fmt.Fprintf(&b, "%.2f %.2f m %.2f %.2f %.2f %.2f %.2f %.2f c S\n",
			sigX+c.X0, sigY+c.Y0,
			sigX+c.CX1, sigY+c.CY1,
			sigX+c.CX2, sigY+c.CY2,
			sigX+c.X1, sigY+c.Y1)
	}

	return b.Bytes()
}

// assemblePDF wraps the content stream in the minimal object graph of a
// one-page document: catalog, page tree, page, contents, font.
func assemblePDF(content []byte) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.0f %.0f] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>", pageWidth, pageHeight),
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return b.Bytes()
}

func escapePDFText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
