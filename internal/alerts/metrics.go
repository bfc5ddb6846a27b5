package alerts

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts aggregation passes and their output.
type Metrics struct {
	passes   prometheus.Counter
	emitted  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics creates the aggregator counters and registers them on reg when
// it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_alert_passes_total",
			Help: "Number of alert aggregation passes.",
		}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_alerts_emitted_total",
			Help: "Alerts produced by aggregation passes, by severity.",
		}, []string{"severity"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_alert_entity_failures_total",
			Help: "Entities skipped during aggregation because their evaluation failed.",
		}, []string{"entity"}),
	}
	if reg != nil {
		reg.MustRegister(m.passes, m.emitted, m.failures)
	}
	return m
}

func (m *Metrics) observe(res *Result) {
	if m == nil {
		return
	}
	m.passes.Inc()
	for _, a := range res.Alerts {
		m.emitted.WithLabelValues(string(a.Severity)).Inc()
	}
	for _, f := range res.Diagnostics.Failures {
		m.failures.WithLabelValues(f.Entity).Inc()
	}
}
