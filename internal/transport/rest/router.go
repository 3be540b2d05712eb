package rest

import (
	"log/slog"

	"github.com/frahmantamala/secure-payments/internal/payment"
	"github.com/frahmantamala/secure-payments/internal/transport/middleware"
	"github.com/frahmantamala/secure-payments/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type RouterOptions struct {
	AllowedOrigins string
	Health         *HealthHandler
	Payments       *payment.Handler
	Docs           *swagger.Document
}

func RegisterAllRoutes(router *chi.Mux, opts RouterOptions, logger *slog.Logger) {
	health := opts.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}

	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/healthz", health.livenessHandler)

	if opts.Docs != nil {
		router.Get("/openapi.yml", opts.Docs.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.healthCheckHandler)
		r.Get("/ping", health.pingHandler)

		if opts.Payments != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(middleware.LoggingMiddleware(logger))

				pr.Route("/payments", func(er chi.Router) {
					er.Post("/", opts.Payments.CreatePayment)              // POST /payments
					er.Get("/", opts.Payments.ListPayments)                // GET /payments
					er.Get("/{id}", opts.Payments.GetPayment)              // GET /payments/:id
					er.Post("/{id}/approve", opts.Payments.ApprovePayment) // POST /payments/:id/approve
				})
			})
		}
	})
}
