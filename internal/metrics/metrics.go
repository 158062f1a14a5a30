// Package metrics registers the prometheus collectors for the booking
// core. Counters follow the rule that seat contention is an expected
// outcome: rejected holds get their own counter rather than being folded
// into an error series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the service records into.
type Metrics struct {
	// HTTP request count by method, path and status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency by method and path.
	HTTPRequestDuration *prometheus.HistogramVec

	// Hold acquisitions by result: granted or rejected.
	HoldsTotal *prometheus.CounterVec

	// Seats released by the expiry sweeper.
	SweptSeatsTotal prometheus.Counter

	// Bookings by final disposition: pending, confirmed, cancelled,
	// expired (payment success after hold lapse).
	BookingsTotal *prometheus.CounterVec

	// Seats currently held, best-effort gauge maintained by the sweeper.
	HeldSeats prometheus.Gauge
}

// New creates the collectors and registers them with the default
// registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with the given registry.
// Tests pass a private registry so parallel test binaries never collide
// on duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_holds_total",
				Help: "Seat hold acquisition attempts by result",
			},
			[]string{"result"},
		),
		SweptSeatsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swept_seats_total",
				Help: "Seats released by the hold expiry sweeper",
			},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Booking state transitions by disposition",
			},
			[]string{"status"},
		),
		HeldSeats: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "held_seats",
				Help: "Seats currently under an active hold",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HoldsTotal,
		m.SweptSeatsTotal,
		m.BookingsTotal,
		m.HeldSeats,
	)
	return m
}
