package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/idempotency"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/tripcheckout/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Checkout        CheckoutService
	Trips           TripReader
	Sandbox         SandboxGateway // nil outside sandbox mode
	IdempotencyRepo idempotency.Repository
	IdempotencyTTL  time.Duration
	HealthChecks    []HealthCheck
	Metrics         *observability.Metrics
	Gatherer        prometheus.Gatherer
	CORSConfig      config.CORSConfig
	JWTSecret       string
	RateLimit       int
	Logger          zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Idempotency-Replayed"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.HealthChecks...)
	checkoutH := NewCheckoutController(deps.Checkout)
	tripH := NewTripController(deps.Trips)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	if deps.Sandbox != nil {
		sandboxH := NewSandboxController(deps.Sandbox)
		r.Get("/sandbox/checkout/{session}", sandboxH.Checkout)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.RateLimit))

		// The return page may load before the session is restored.
		r.With(customMW.OptionalAuth(deps.JWTSecret)).Get("/checkout/return", checkoutH.Return)

		r.Group(func(r chi.Router) {
			r.Use(customMW.RequireAuth(deps.JWTSecret))

			idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo, deps.IdempotencyTTL, deps.Logger)
			if deps.IdempotencyRepo == nil {
				idempotencyMW = func(next http.Handler) http.Handler { return next }
			}

			r.With(idempotencyMW).Post("/checkout", checkoutH.Start)
			r.Get("/checkout/pending", checkoutH.Pending)
			r.Delete("/checkout/pending", checkoutH.Discard)

			r.Get("/trips/{id}", tripH.Get)
			r.Get("/trips/join/{code}", tripH.Join)
		})
	})

	return r
}
