package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the REST client.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs the client collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshare_client_requests_total",
			Help: "Total HTTP requests issued to the catalog backend.",
		},
		[]string{"resource", "method"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookshare_client_request_duration_seconds",
			Help:    "HTTP request latency for catalog backend requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshare_client_errors_total",
			Help: "Total number of failed backend requests by kind.",
		},
		[]string{"resource", "kind"},
	)

	if reg != nil {
		reg.MustRegister(requests, requestDuration, errorsTotal)
	}

	return &Metrics{
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests counter.
func (m *Metrics) IncRequest(resource, method string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(resource, method).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// IncError increments the errors counter for a kind.
func (m *Metrics) IncError(resource string, kind Kind) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(resource, string(kind)).Inc()
}
