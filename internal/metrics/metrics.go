package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	appointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total number of appointments successfully booked",
		},
	)

	slotConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointment_slot_conflicts_total",
			Help: "Total number of booking attempts rejected because the slot was taken",
		},
	)

	appointmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_status_transitions_total",
			Help: "Total number of appointment status transitions",
		},
		[]string{"from", "to"},
	)

	prescriptionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prescriptions_created_total",
			Help: "Total number of prescriptions created",
		},
	)

	prescriptionsPaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prescriptions_paid_total",
			Help: "Total number of prescriptions settled through the payment workflow",
		},
	)

	documentsRendered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prescription_documents_rendered_total",
			Help: "Total number of prescription PDFs rendered",
		},
	)
)

func AppointmentBooked() { appointmentsBooked.Inc() }

func SlotConflict() { slotConflicts.Inc() }

func AppointmentTransition(from, to string) { appointmentTransitions.WithLabelValues(from, to).Inc() }

func PrescriptionCreated() { prescriptionsCreated.Inc() }

func PrescriptionPaid() { prescriptionsPaid.Inc() }

func DocumentRendered() { documentsRendered.Inc() }

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments request counts and latency. The chi route pattern
// would give lower cardinality, but raw paths here are bounded by the small
// API surface.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}
