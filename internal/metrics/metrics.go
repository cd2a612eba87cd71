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
	IPNReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randgate_ipn_received_total",
			Help: "Payment notifications received, by outcome",
		},
		[]string{"outcome"},
	)

	EntitlementsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "randgate_entitlements_granted_total",
			Help: "Users transitioned from unpaid to paid",
		},
	)

	PaymentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randgate_payments_created_total",
			Help: "Payment creation requests sent to the processor, by result",
		},
		[]string{"result"},
	)

	GatedDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randgate_gated_decisions_total",
			Help: "Gated command checks, by decision",
		},
		[]string{"decision"},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "randgate_notifications_failed_total",
			Help: "Outbound user notifications that could not be delivered",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "randgate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// ObserveHTTP records a finished HTTP request.
func ObserveHTTP(method string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
