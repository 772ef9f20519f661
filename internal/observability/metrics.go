package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the banking API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	transfersTotal  *prometheus.CounterVec
	limitRejections *prometheus.CounterVec
	settlements     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "banking_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "banking_transfers_total",
				Help: "Total transfers by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		limitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "banking_limit_rejections_total",
				Help: "Transfers rejected by the limit policy, by limit.",
			},
			[]string{"limit"},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "banking_settlements_total",
				Help: "Settlement events processed, by disposition.",
			},
			[]string{"disposition"},
		),
	}
}

// RecordRequestDuration records the duration of one HTTP request.
func (m *Metrics) RecordRequestDuration(method, route string, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncrTransfer counts a transfer attempt outcome.
func (m *Metrics) IncrTransfer(kind, outcome string) {
	m.transfersTotal.WithLabelValues(kind, outcome).Inc()
}

// IncrLimitRejection counts a rejection by the named limit.
func (m *Metrics) IncrLimitRejection(limit string) {
	m.limitRejections.WithLabelValues(limit).Inc()
}

// IncrSettlement counts a processed settlement event.
func (m *Metrics) IncrSettlement(disposition string) {
	m.settlements.WithLabelValues(disposition).Inc()
}
