package notification

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeAppointmentCreated   = "appointment_created"
	TypeAppointmentUpdated   = "appointment_updated"
	TypeAppointmentReminder  = "appointment_reminder"
	TypeAppointmentCancelled = "appointment_cancelled"
	TypePaymentReceived      = "payment_received"
	TypePrescriptionCreated  = "prescription_created"
)

type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Type        string
	Title       string
	Message     string
	Read        bool
	CreatedAt   time.Time
}
