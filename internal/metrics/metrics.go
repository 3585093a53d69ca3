// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the application's collectors.
type Metrics struct {
	Scans           *prometheus.CounterVec
	Reports         *prometheus.CounterVec
	Emails          *prometheus.CounterVec
	Jobs            *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Name:      "scans_total",
			Help:      "QR scans by outcome (checkpoint name, duplicate or error kind).",
		}, []string{"outcome"}),
		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Name:      "reports_total",
			Help:      "Generated attendance reports by kind and format.",
		}, []string{"kind", "format"}),
		Emails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Name:      "emails_total",
			Help:      "Email send attempts by result.",
		}, []string{"result"}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evently",
			Name:      "jobs_total",
			Help:      "Worker jobs by type and result.",
		}, []string{"type", "result"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "evently",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// EmailResult is a mailer.Dispatcher OnResult hook.
func (m *Metrics) EmailResult(err error) {
	if err != nil {
		m.Emails.WithLabelValues("failed").Inc()
		return
	}
	m.Emails.WithLabelValues("sent").Inc()
}
