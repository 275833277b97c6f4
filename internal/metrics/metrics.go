package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "asksite"

var (
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Backend calls issued by the gateway, by operation and outcome.",
		},
		[]string{"op", "outcome"}, // outcome: ok, or the transport error kind
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of backend calls.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"op"},
	)

	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session controller operations, by operation and result.",
		},
		[]string{"op", "result"},
	)

	RegistrySites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_sites",
			Help:      "Sites currently known to the registry.",
		},
	)

	CrawlsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crawls_tracked",
			Help:      "Crawls requested by this process that are still being polled.",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Companion API requests.",
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveGateway records one backend call.
func ObserveGateway(op, outcome string, d time.Duration) {
	GatewayRequestsTotal.WithLabelValues(op, outcome).Inc()
	GatewayRequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSession records one session operation result ("ok", "rejected", "failed", ...).
func ObserveSession(op, result string) {
	SessionOperationsTotal.WithLabelValues(op, result).Inc()
}
