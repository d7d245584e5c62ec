// Package monitoring registers the service's Prometheus collectors and
// exposes small helpers to update them.
package monitoring

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reservationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_reservation_operations_total",
			Help: "Reservation operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	paymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_payment_transitions_total",
			Help: "Payment status changes, including ignored ones",
		},
		[]string{"to", "result"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_webhook_deliveries_total",
			Help: "Processor webhook deliveries by event type and outcome",
		},
		[]string{"type", "outcome"},
	)

	txDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_tx_duration_seconds",
			Help:    "Duration of core write transactions",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)
)

// TrackReservation counts a reservation operation such as create,
// cancel or expire.
func TrackReservation(operation, outcome string) {
	reservationOps.WithLabelValues(operation, outcome).Inc()
}

// TrackPayment counts a payment transition attempt. result is one of
// applied, noop or rejected.
func TrackPayment(to, result string) {
	paymentTransitions.WithLabelValues(to, result).Inc()
}

// TrackWebhook counts a webhook delivery.
func TrackWebhook(eventType, outcome string) {
	webhookDeliveries.WithLabelValues(eventType, outcome).Inc()
}

// ObserveTx records how long a core transaction took.
func ObserveTx(operation string, start time.Time) {
	txDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
