package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsCreated    *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	ParcelsRegistered  prometheus.Counter
	ParcelsTransferred prometheus.Counter
	LedgerDegradedOps  *prometheus.CounterVec
	ReconcileRetries   prometheus.Counter
	RequestLatency     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jagga_requests_created_total",
			Help: "Lifecycle requests created, by request type.",
		}, []string{"type"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jagga_request_transitions_total",
			Help: "Lifecycle transitions applied, by resulting status.",
		}, []string{"status"}),
		ParcelsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jagga_parcels_registered_total",
			Help: "Parcels created from approved registrations.",
		}),
		ParcelsTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jagga_parcels_transferred_total",
			Help: "Parcel ownership changes from approved transfers.",
		}),
		LedgerDegradedOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jagga_ledger_degraded_ops_total",
			Help: "Ledger record operations that fell back to a placeholder reference.",
		}, []string{"op"}),
		ReconcileRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jagga_reconciliation_retries_total",
			Help: "Reconciliations resumed from a persisted pending/failed marker.",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jagga_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
