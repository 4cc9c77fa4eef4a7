package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cce_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cce_bookings_total",
			Help: "Booking operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cce_checkouts_total",
			Help: "Cart checkouts by outcome",
		},
		[]string{"outcome"},
	)

	CaptureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cce_payment_capture_seconds",
			Help:    "Duration of external payment capture round trips",
			Buckets: prometheus.DefBuckets,
		},
	)

	HoldsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cce_holds_swept_total",
			Help: "Expired calendar holds released by the sweeper",
		},
	)

	ReservationsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cce_reservations_swept_total",
			Help: "Expired inventory reservations released by the sweeper",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cce_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cce_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
