package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/SersifAbdeljalil/hospital-management/internal/document"
	"github.com/SersifAbdeljalil/hospital-management/internal/prescription"
	"github.com/SersifAbdeljalil/hospital-management/internal/scheduling"
)

// stubScheduling lets each test script the service outcome per method.
type stubScheduling struct {
	createErr error
	appt      *scheduling.Appointment
	slots     []time.Time
	slotsErr  error
}

func (s *stubScheduling) CreateAppointment(ctx context.Context, in scheduling.NewAppointment) (*scheduling.Appointment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.appt, nil
}

func (s *stubScheduling) UpdateAppointment(ctx context.Context, id uuid.UUID, upd scheduling.AppointmentUpdate) (*scheduling.Appointment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.appt, nil
}

func (s *stubScheduling) CancelAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.appt, nil
}

func (s *stubScheduling) GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	if s.appt == nil {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return s.appt, nil
}

func (s *stubScheduling) ListAvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time, slotMin int) ([]time.Time, error) {
	return s.slots, s.slotsErr
}

type stubPrescriptions struct {
	created   *prescription.Prescription
	createErr error
	payResult *prescription.PayResult
	payErr    error
	artifact  *document.Artifact
	renderErr error
	deleteErr error

	// captured arguments
	gotRequester   uuid.UUID
	gotPayer       uuid.UUID
	renderDeadline bool
}

func (s *stubPrescriptions) Create(ctx context.Context, in prescription.NewPrescription) (*prescription.Prescription, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubPrescriptions) Get(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	if s.created == nil {
		return nil, prescription.ErrPrescriptionNotFound
	}
	return s.created, nil
}

func (s *stubPrescriptions) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteErr
}

func (s *stubPrescriptions) Pay(ctx context.Context, prescriptionID, payerID uuid.UUID, amount float64, method string) (*prescription.PayResult, error) {
	s.gotPayer = payerID
	if s.payErr != nil {
		return nil, s.payErr
	}
	return s.payResult, nil
}

func (s *stubPrescriptions) RenderDocument(ctx context.Context, id, requester uuid.UUID) (*document.Artifact, error) {
	s.gotRequester = requester
	_, s.renderDeadline = ctx.Deadline()
	if s.renderErr != nil {
		return nil, s.renderErr
	}
	return s.artifact, nil
}

func testRouter(sched SchedulingService, presc PrescriptionService) http.Handler {
	r := chi.NewRouter()
	r.Use(IdentityMiddleware)
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(sched))
		r.Get("/availability/{practitionerId}", listAvailabilityHandler(sched, 30))
		r.Get("/{id}", getAppointmentHandler(sched))
		r.Put("/{id}", updateAppointmentHandler(sched))
		r.Delete("/{id}", cancelAppointmentHandler(sched))
	})
	r.Route("/prescriptions", func(r chi.Router) {
		r.Post("/", createPrescriptionHandler(presc))
		r.Get("/{id}", getPrescriptionHandler(presc))
		r.Delete("/{id}", deletePrescriptionHandler(presc))
		r.Post("/{id}/pay", payPrescriptionHandler(presc))
		r.Get("/{id}/pdf", downloadPrescriptionPDFHandler(presc, 15*time.Second))
	})
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func sampleAppointment() *scheduling.Appointment {
	return &scheduling.Appointment{
		ID:             uuid.New(),
		PatientID:      uuid.New(),
		PractitionerID: uuid.New(),
		StartTime:      time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		DurationMin:    30,
		Status:         scheduling.StatusPlanned,
		Motif:          "Consultation",
		CreatedAt:      time.Now(),
	}
}

func TestListAvailability(t *testing.T) {
	sched := &stubScheduling{slots: []time.Time{
		time.Date(2026, 9, 14, 9, 0, 0, 0, time.Local),
		time.Date(2026, 9, 14, 9, 30, 0, 0, time.Local),
	}}
	router := testRouter(sched, &stubPrescriptions{})

	req := httptest.NewRequest(http.MethodGet, "/appointments/availability/"+uuid.NewString()+"?date=2026-09-14", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp AvailabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Errorf("success = false")
	}
	if len(resp.Slots) != 2 || resp.Slots[0].Time != "09:00" || resp.Slots[1].Time != "09:30" {
		t.Errorf("slots = %+v", resp.Slots)
	}
}

func TestListAvailabilityBadDate(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{})

	req := httptest.NewRequest(http.MethodGet, "/appointments/availability/"+uuid.NewString()+"?date=14-09-2026", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateAppointment(t *testing.T) {
	appt := sampleAppointment()
	router := testRouter(&stubScheduling{appt: appt}, &stubPrescriptions{})

	payload := map[string]any{
		"patient_id": appt.PatientID.String(),
		"medecin_id": appt.PractitionerID.String(),
		"date_heure": appt.StartTime.Format(time.RFC3339),
		"duree":      30,
		"motif":      "Consultation",
	}
	b, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(string(b)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	data := body["data"].(map[string]any)
	if data["statut"] != "planned" {
		t.Errorf("statut = %v", data["statut"])
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{})

	// Missing motif and an out-of-range duration.
	payload := map[string]any{
		"patient_id": uuid.NewString(),
		"medecin_id": uuid.NewString(),
		"date_heure": "2026-09-14T10:00:00Z",
		"duree":      2,
	}
	b, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(string(b)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["error"] != "validation_error" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	router := testRouter(&stubScheduling{createErr: scheduling.ErrSlotUnavailable}, &stubPrescriptions{})

	payload := map[string]any{
		"patient_id": uuid.NewString(),
		"medecin_id": uuid.NewString(),
		"date_heure": "2026-09-14T10:00:00Z",
		"duree":      30,
		"motif":      "Consultation",
	}
	b, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(string(b)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["error"] != "slot_unavailable" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestUpdateAppointmentInvalidTransition(t *testing.T) {
	router := testRouter(&stubScheduling{createErr: scheduling.ErrInvalidTransition}, &stubPrescriptions{})

	b, _ := json.Marshal(map[string]any{"statut": "completed"})
	req := httptest.NewRequest(http.MethodPut, "/appointments/"+uuid.NewString(), strings.NewReader(string(b)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "invalid_status_transition" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestUpdateAppointmentRejectsUnknownStatus(t *testing.T) {
	router := testRouter(&stubScheduling{appt: sampleAppointment()}, &stubPrescriptions{})

	b, _ := json.Marshal(map[string]any{"statut": "terminee"})
	req := httptest.NewRequest(http.MethodPut, "/appointments/"+uuid.NewString(), strings.NewReader(string(b)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func samplePrescription() *prescription.Prescription {
	return &prescription.Prescription{
		ID:        uuid.New(),
		Number:    "ORD-20260914-100000-9b1c",
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Diagnosis: "Angine",
		Medications: []prescription.Medication{
			{Name: "Amoxicilline", Posology: "3 fois par jour"},
		},
		PaymentStatus: prescription.PaymentPending,
		CreatedAt:     time.Now(),
	}
}

func TestCreatePrescriptionRequiresIdentity(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{created: samplePrescription()})

	b, _ := json.Marshal(map[string]any{
		"patient_id": uuid.NewString(),
		"diagnostic": "Angine",
		"medicaments": []map[string]any{
			{"nom": "Amoxicilline", "posologie": "3 fois par jour"},
		},
	})

	// No X-User-ID header.
	req := httptest.NewRequest(http.MethodPost, "/prescriptions", strings.NewReader(string(b)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// With the gateway identity it goes through.
	req = httptest.NewRequest(http.MethodPost, "/prescriptions", strings.NewReader(string(b)))
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "medecin")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	if data["statut_paiement"] != "en_attente" {
		t.Errorf("statut_paiement = %v, want en_attente", data["statut_paiement"])
	}
}

func TestPayPrescription(t *testing.T) {
	p := samplePrescription()
	stub := &stubPrescriptions{
		created: p,
		payResult: &prescription.PayResult{
			PrescriptionID: p.ID,
			InvoiceID:      uuid.New(),
			AmountPaid:     150,
			Status:         prescription.PaymentPaid,
		},
	}
	router := testRouter(&stubScheduling{}, stub)

	payer := p.PatientID
	b, _ := json.Marshal(map[string]any{"montant": 150, "methode_paiement": "card"})
	req := httptest.NewRequest(http.MethodPost, "/prescriptions/"+p.ID.String()+"/pay", strings.NewReader(string(b)))
	req.Header.Set("X-User-ID", payer.String())
	req.Header.Set("X-User-Role", "patient")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.gotPayer != payer {
		t.Errorf("payer = %v, want the identity header user", stub.gotPayer)
	}
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	if data["statut"] != "payee" {
		t.Errorf("statut = %v, want payee", data["statut"])
	}
	if data["montant_paye"] != 150.0 {
		t.Errorf("montant_paye = %v, want 150", data["montant_paye"])
	}
}

func TestPayPrescriptionAlreadyPaid(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{payErr: prescription.ErrAlreadyPaid})

	b, _ := json.Marshal(map[string]any{"montant": 150, "methode_paiement": "card"})
	req := httptest.NewRequest(http.MethodPost, "/prescriptions/"+uuid.NewString()+"/pay", strings.NewReader(string(b)))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "already_paid" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestPayPrescriptionValidation(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{})

	b, _ := json.Marshal(map[string]any{"montant": -5, "methode_paiement": "card"})
	req := httptest.NewRequest(http.MethodPost, "/prescriptions/"+uuid.NewString()+"/pay", strings.NewReader(string(b)))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadPDFPaymentGate(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{renderErr: prescription.ErrNotPaid})

	// A forged paid flag in the query changes nothing: the service decides.
	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/pdf?paid=true", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "patient")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "payment_required" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestDownloadPDF(t *testing.T) {
	stub := &stubPrescriptions{artifact: &document.Artifact{
		Filename:    "ORD-20260914-100000-9b1c_1760000000.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 fake"),
	}}
	router := testRouter(&stubScheduling{}, stub)

	patientID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/pdf", nil)
	req.Header.Set("X-User-ID", patientID.String())
	req.Header.Set("X-User-Role", "patient")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if stub.gotRequester != patientID {
		t.Errorf("patient identity not forwarded as requester")
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("missing attachment disposition")
	}
	if !stub.renderDeadline {
		t.Errorf("render context carries no deadline")
	}
}

func TestDownloadPDFStaffBypassesOwnership(t *testing.T) {
	stub := &stubPrescriptions{artifact: &document.Artifact{
		Filename:    "ORD.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 fake"),
	}}
	router := testRouter(&stubScheduling{}, stub)

	req := httptest.NewRequest(http.MethodGet, "/prescriptions/"+uuid.NewString()+"/pdf", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "medecin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if stub.gotRequester != uuid.Nil {
		t.Errorf("staff caller should not be passed as owning requester")
	}
}

func TestDeletePaidPrescription(t *testing.T) {
	router := testRouter(&stubScheduling{}, &stubPrescriptions{deleteErr: prescription.ErrPrescriptionPaid})

	req := httptest.NewRequest(http.MethodDelete, "/prescriptions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "prescription_paid" {
		t.Errorf("error kind = %v", body["error"])
	}
}
