package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SersifAbdeljalil/hospital-management/internal/metrics"
)

type RouterConfig struct {
	Scheduling    SchedulingService
	Prescriptions PrescriptionService
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        *zap.Logger
	Env           string
	Version       string
	SlotMinutes   int
	RenderTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(metrics.Middleware)
	r.Use(IdentityMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and scrape endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		// Self-service booking is the abuse-prone surface.
		r.With(httprate.LimitByIP(60, time.Minute)).Post("/", createAppointmentHandler(cfg.Scheduling))
		r.Get("/availability/{practitionerId}", listAvailabilityHandler(cfg.Scheduling, cfg.SlotMinutes))
		r.Get("/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Put("/{id}", updateAppointmentHandler(cfg.Scheduling))
		r.Delete("/{id}", cancelAppointmentHandler(cfg.Scheduling))
	})

	// Prescription endpoints
	r.Route("/prescriptions", func(r chi.Router) {
		r.Post("/", createPrescriptionHandler(cfg.Prescriptions))
		r.Get("/{id}", getPrescriptionHandler(cfg.Prescriptions))
		r.Delete("/{id}", deletePrescriptionHandler(cfg.Prescriptions))
		r.With(httprate.LimitByIP(30, time.Minute)).Post("/{id}/pay", payPrescriptionHandler(cfg.Prescriptions))
		r.Get("/{id}/pdf", downloadPrescriptionPDFHandler(cfg.Prescriptions, cfg.RenderTimeout))
	})

	return r
}
