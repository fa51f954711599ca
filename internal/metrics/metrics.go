// Package metrics exposes Prometheus metrics for token caching and endpoint
// registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "charge"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Token sources.
const (
	SourceCache    = "cache"
	SourceKeystone = "keystone"
)

// Registry holds every charge collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// TokenRequestsTotal counts served tokens by where they came from.
	TokenRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "requests_total",
			Help:      "Tokens served, by source (cache or keystone)",
		},
		[]string{"source"},
	)

	// TokenRefreshTotal counts Keystone authentications.
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "refresh_total",
			Help:      "Keystone authentications performed",
		},
		[]string{"result"},
	)

	// TokenExpiryTimestamp is the expiry of the last cached token, in unix seconds.
	TokenExpiryTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "expiry_timestamp_seconds",
			Help:      "Expiry of the most recently issued token",
		},
	)

	// ReconcileTotal counts reconciliation runs.
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Endpoint reconciliation runs",
		},
		[]string{"result"},
	)

	// ReconcileDuration tracks how long a reconciliation run takes.
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of endpoint reconciliation runs",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// EndpointCorrectionsTotal counts endpoint writes by action.
	EndpointCorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "endpoint_corrections_total",
			Help:      "Endpoints created or updated by reconciliation",
		},
		[]string{"action"},
	)

	// LastSuccessTimestamp is the start time of the last successful run.
	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "last_success_timestamp_seconds",
			Help:      "Start of the last successful reconciliation",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TokenRequestsTotal,
		TokenRefreshTotal,
		TokenExpiryTimestamp,
		ReconcileTotal,
		ReconcileDuration,
		EndpointCorrectionsTotal,
		LastSuccessTimestamp,
	)
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTokenServed increments the served-token counter for source.
func RecordTokenServed(source string) {
	TokenRequestsTotal.WithLabelValues(source).Inc()
}

// RecordTokenRefresh records one authentication and, on success, the token expiry.
func RecordTokenRefresh(expiresAt time.Time, err error) {
	if err != nil {
		TokenRefreshTotal.WithLabelValues(ResultFailure).Inc()
		return
	}
	TokenRefreshTotal.WithLabelValues(ResultSuccess).Inc()
	if !expiresAt.IsZero() {
		TokenExpiryTimestamp.Set(float64(expiresAt.Unix()))
	}
}

// RecordReconcile records one reconciliation run.
func RecordReconcile(started time.Time, took time.Duration, created, updated int, err error) {
	ReconcileDuration.Observe(took.Seconds())
	EndpointCorrectionsTotal.WithLabelValues("created").Add(float64(created))
	EndpointCorrectionsTotal.WithLabelValues("updated").Add(float64(updated))
	if err != nil {
		ReconcileTotal.WithLabelValues(ResultFailure).Inc()
		return
	}
	ReconcileTotal.WithLabelValues(ResultSuccess).Inc()
	LastSuccessTimestamp.Set(float64(started.Unix()))
}
