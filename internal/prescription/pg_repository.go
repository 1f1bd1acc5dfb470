package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SersifAbdeljalil/hospital-management/internal/billing"
)

const prescriptionColumns = `id, number, patient_id, doctor_id, consultation_id, diagnosis, medications, instructions, treatment_duration, payment_status, invoice_id, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var consultationID, invoiceID *uuid.UUID
	var medsJSON []byte

	err := row.Scan(
		&p.ID,
		&p.Number,
		&p.PatientID,
		&p.DoctorID,
		&consultationID,
		&p.Diagnosis,
		&medsJSON,
		&p.Instructions,
		&p.TreatmentDuration,
		&p.PaymentStatus,
		&invoiceID,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	if len(medsJSON) > 0 {
		if err := json.Unmarshal(medsJSON, &p.Medications); err != nil {
			return nil, fmt.Errorf("decode medications: %w", err)
		}
	}

	p.ConsultationID = consultationID
	p.InvoiceID = invoiceID
	return &p, nil
}

func scanInvoice(row pgx.Row) (*billing.Invoice, error) {
	var inv billing.Invoice
	var prescriptionID *uuid.UUID

	err := row.Scan(
		&inv.ID,
		&inv.Number,
		&inv.PatientID,
		&inv.TotalAmount,
		&inv.AmountPaid,
		&inv.AmountRemaining,
		&inv.Status,
		&inv.Description,
		&prescriptionID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	inv.PrescriptionID = prescriptionID
	return &inv, nil
}

func (r *PgRepository) Create(ctx context.Context, p *Prescription) (*Prescription, error) {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	medsJSON, err := json.Marshal(p.Medications)
	if err != nil {
		return nil, fmt.Errorf("encode medications: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO prescriptions (id, number, patient_id, doctor_id, consultation_id, diagnosis, medications, instructions, treatment_duration, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', now())
		RETURNING `+prescriptionColumns+`
	`, id, p.Number, p.PatientID, p.DoctorID, p.ConsultationID, p.Diagnosis, medsJSON, p.Instructions, p.TreatmentDuration)

	return scanPrescription(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE id = $1
	`, id)
	return scanPrescription(row)
}

func (r *PgRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	// Deleting a paid prescription would orphan a settled invoice, so the
	// payment status is part of the predicate.
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM prescriptions
		WHERE id = $1
		  AND payment_status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or no longer pending; look again to tell which.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrPrescriptionPaid
	}
	return nil
}

// Pay runs the whole payment workflow in one transaction. The row lock on
// the prescription serializes concurrent payment attempts; the loser
// re-reads a paid status and gets ErrAlreadyPaid.
func (r *PgRepository) Pay(ctx context.Context, in PaymentInput) (*billing.Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanPrescription(tx.QueryRow(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE id = $1
		FOR UPDATE
	`, in.PrescriptionID))
	if err != nil {
		return nil, err
	}

	// Ownership is checked before payment state so a foreign payer never
	// learns whether someone else's prescription is settled.
	if p.PatientID != in.PayerID {
		return nil, ErrNotOwner
	}
	if p.PaymentStatus != PaymentPending {
		return nil, ErrAlreadyPaid
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var invoice *billing.Invoice
	if p.InvoiceID == nil {
		invoice, err = r.createPaidInvoice(ctx, tx, p, in.Amount, now)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE prescriptions
			SET payment_status = 'paid',
			    invoice_id = $2
			WHERE id = $1
		`, p.ID, invoice.ID)
		if err != nil {
			return nil, fmt.Errorf("mark prescription paid: %w", err)
		}
	} else {
		// Staff pre-billed this prescription; settle the existing invoice.
		invoice, err = scanInvoice(tx.QueryRow(ctx, `
			UPDATE invoices
			SET status = 'paid',
			    amount_paid = total_amount,
			    amount_remaining = 0,
			    updated_at = now()
			WHERE id = $1
			RETURNING id, number, patient_id, total_amount, amount_paid, amount_remaining, status, description, prescription_id, created_at, updated_at
		`, *p.InvoiceID))
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE prescriptions
			SET payment_status = 'paid'
			WHERE id = $1
		`, p.ID)
		if err != nil {
			return nil, fmt.Errorf("mark prescription paid: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), invoice.ID, in.Amount, in.Method, in.PayerID, now)
	if err != nil {
		return nil, fmt.Errorf("append payment record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}

	return invoice, nil
}

func (r *PgRepository) createPaidInvoice(ctx context.Context, q rowQuerier, p *Prescription, amount float64, now time.Time) (*billing.Invoice, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO invoices (id, number, patient_id, total_amount, amount_paid, amount_remaining, status, description, prescription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4, 0, 'paid', $5, $6, $7, $7)
		RETURNING id, number, patient_id, total_amount, amount_paid, amount_remaining, status, description, prescription_id, created_at, updated_at
	`, uuid.New(), billing.NewInvoiceNumber(now), p.PatientID, amount,
		fmt.Sprintf("Règlement ordonnance %s", p.Number), p.ID, now)

	inv, err := scanInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

func (r *PgRepository) GetDocumentData(ctx context.Context, id uuid.UUID) (*DocumentData, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data := DocumentData{Prescription: *p}

	err = r.pool.QueryRow(ctx, `
		SELECT pa.full_name, pr.full_name, COALESCE(pr.specialty, '')
		FROM prescriptions o
		JOIN patients pa ON pa.id = o.patient_id
		JOIN practitioners pr ON pr.id = o.doctor_id
		WHERE o.id = $1
	`, id).Scan(&data.PatientName, &data.DoctorName, &data.DoctorSpecialty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	if p.InvoiceID != nil {
		var paidAt time.Time
		var method string
		err = r.pool.QueryRow(ctx, `
			SELECT created_at, method
			FROM payments
			WHERE invoice_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		`, *p.InvoiceID).Scan(&paidAt, &method)
		if err == nil {
			data.PaidAt = &paidAt
			data.PaymentMethod = method
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	return &data, nil
}
