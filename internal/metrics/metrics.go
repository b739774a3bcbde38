// Package metrics exposes Prometheus instruments for projection and
// statement work.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forecast"

type Metrics struct {
	gatherer prometheus.Gatherer

	ProjectionsGenerated *prometheus.CounterVec
	BatchFailures        *prometheus.CounterVec
	ReconcileOutcomes    *prometheus.CounterVec
	RecalcDuration       *prometheus.HistogramVec
	StatementsCalculated *prometheus.CounterVec
	UnbalancedSheets     prometheus.Counter
	MessagesConsumed     *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	RateLimited          prometheus.Counter
	SuspiciousRequests   prometheus.Counter
}

// New registers every instrument on reg. Pass prometheus.NewRegistry() in
// tests to keep registrations isolated.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		ProjectionsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projections_generated_total",
			Help:      "Projection entries produced, by obligation kind.",
		}, []string{"kind"}),
		BatchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_failures_total",
			Help:      "Obligations that failed to project, by kind.",
		}, []string{"kind"}),
		ReconcileOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_rows_total",
			Help:      "Ledger rows by reconcile outcome (insert, update, unchanged, delete).",
		}, []string{"outcome"}),
		RecalcDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalculation_duration_seconds",
			Help:      "Time spent recalculating one obligation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		StatementsCalculated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_calculated_total",
			Help:      "Financial statements calculated, by kind.",
		}, []string{"statement"}),
		UnbalancedSheets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_sheets_unbalanced_total",
			Help:      "Balance sheets that needed a reconciling adjustment or were refused.",
		}),
		MessagesConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amqp_messages_total",
			Help:      "Recalculation messages consumed, by result (ack, requeue, reject).",
		}, []string{"result"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests refused by the per-client rate limit.",
		}),
		SuspiciousRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_suspicious_requests_total",
			Help:      "Requests refused as probing or malformed.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP matches the log.AccessLog observer signature.
func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	m.HTTPDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) ObserveReconcile(inserted, updated, unchanged, deleted int) {
	m.ReconcileOutcomes.WithLabelValues("insert").Add(float64(inserted))
	m.ReconcileOutcomes.WithLabelValues("update").Add(float64(updated))
	m.ReconcileOutcomes.WithLabelValues("unchanged").Add(float64(unchanged))
	m.ReconcileOutcomes.WithLabelValues("delete").Add(float64(deleted))
}
