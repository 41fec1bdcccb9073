package query

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the query cache.
type Metrics struct {
	HitsTotal      prometheus.Counter
	MissesTotal    prometheus.Counter
	JoinsTotal     prometheus.Counter
	DroppedTotal   prometheus.Counter
	ErrorsTotal    prometheus.Counter
	EvictionsTotal prometheus.Counter
}

// NewMetrics constructs the cache collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshare_query_hits_total",
			Help: "Queries answered from a fresh cached value.",
		}),
		MissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshare_query_fetches_total",
			Help: "Fetches started by the query cache.",
		}),
		JoinsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshare_query_joins_total",
			Help: "Queries that attached to a fetch already in flight.",
		}),
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshare_query_dropped_total",
			Help: "Fetch results discarded because a newer result was already applied.",
		}),
		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshare_query_errors_total",
			Help: "Fetches that completed with an error.",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshare_query_evictions_total",
			Help: "Keys evicted from the cache to respect its size bound.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.HitsTotal, m.MissesTotal, m.JoinsTotal, m.DroppedTotal, m.ErrorsTotal, m.EvictionsTotal)
	}
	return m
}

// IncHit increments the hits counter.
func (m *Metrics) IncHit() {
	if m == nil {
		return
	}
	m.HitsTotal.Inc()
}

// IncMiss increments the started fetches counter.
func (m *Metrics) IncMiss() {
	if m == nil {
		return
	}
	m.MissesTotal.Inc()
}

// IncJoin increments the joined fetches counter.
func (m *Metrics) IncJoin() {
	if m == nil {
		return
	}
	m.JoinsTotal.Inc()
}

// IncDropped increments the dropped results counter.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.DroppedTotal.Inc()
}

// IncError increments the failed fetches counter.
func (m *Metrics) IncError() {
	if m == nil {
		return
	}
	m.ErrorsTotal.Inc()
}

// IncEviction increments the evictions counter.
func (m *Metrics) IncEviction() {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
}
