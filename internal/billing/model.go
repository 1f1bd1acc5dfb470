package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "unpaid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

type Invoice struct {
	ID              uuid.UUID
	Number          string
	PatientID       uuid.UUID
	TotalAmount     float64
	AmountPaid      float64
	AmountRemaining float64
	Status          InvoiceStatus
	Description     string
	PrescriptionID  *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Consistent reports whether paid + remaining still add up to the total.
// Every committed write must keep this true.
func (i Invoice) Consistent() bool {
	return i.AmountPaid+i.AmountRemaining == i.TotalAmount
}

// Payment is append-only: rows are never updated or deleted. The payments
// table is the audit trail of how an invoice reached paid.
type Payment struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	Amount     float64
	Method     string
	RecordedBy uuid.UUID
	CreatedAt  time.Time
}

// NewInvoiceNumber builds a human-readable invoice number such as
// FACT-20260828-3f2a91c4. The uuid fragment keeps same-day numbers distinct.
func NewInvoiceNumber(now time.Time) string {
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("FACT-%s-%s", now.Format("20060102"), frag)
}
