package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/campusmkt/campus-commerce-engine/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/bookings", h.CreateBooking)
		r.Get("/bookings/{id}", h.GetBooking)
		r.Post("/bookings/{id}/confirm", h.ConfirmBooking)
		r.Post("/bookings/{id}/cancel", h.CancelBooking)
		r.Post("/bookings/{id}/reschedule", h.RescheduleBooking)
		r.Post("/bookings/{id}/complete", h.CompleteBooking)
		r.Post("/bookings/{id}/no-show", h.MarkNoShow)

		r.Post("/carts/checkout", h.CheckoutCart)
		r.Get("/orders/{id}", h.GetOrder)

		r.Post("/payments/callback", h.PaymentCallback)
		r.Get("/fees/quote", h.FeeQuote)

		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
