package assets

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for image probes.
type Metrics struct {
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
}

// NewMetrics constructs the probe collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	probes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshare_image_probes_total",
			Help: "Total image URLs probed by outcome.",
		},
		[]string{"result"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookshare_image_probe_duration_seconds",
			Help:    "Latency of successful image probes.",
			Buckets: prometheus.DefBuckets,
		},
	)

	if reg != nil {
		reg.MustRegister(probes, duration)
	}
	return &Metrics{ProbesTotal: probes, ProbeDuration: duration}
}

// IncProbe counts one probe outcome.
func (m *Metrics) IncProbe(ok bool) {
	if m == nil {
		return
	}
	result := "broken"
	if ok {
		result = "ok"
	}
	m.ProbesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ProbeDuration.Observe(d.Seconds())
}
