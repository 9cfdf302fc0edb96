package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the orchestrator's Prometheus collectors, labelled by batch name.
type Metrics struct {
	units        *prometheus.CounterVec
	unitDuration *prometheus.HistogramVec
	hookFailures *prometheus.CounterVec
	inflight     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semdigest",
			Name:      "units_total",
			Help:      "Units finished by the orchestrator, by outcome.",
		}, []string{"batch", "outcome"}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semdigest",
			Name:      "unit_duration_seconds",
			Help:      "Time to run one record through the chain and hook.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"batch"}),
		hookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semdigest",
			Name:      "hook_failures_total",
			Help:      "Post-processing hook failures; the record is kept.",
		}, []string{"batch"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "semdigest",
			Name:      "units_inflight",
			Help:      "Units currently held by a worker.",
		}, []string{"batch"}),
	}
	reg.MustRegister(m.units, m.unitDuration, m.hookFailures, m.inflight)
	return m
}

func (m *Metrics) observe(batch string, out outcome) {
	if m == nil {
		return
	}
	result := "succeeded"
	if out.err != nil {
		result = "failed"
	}
	m.units.WithLabelValues(batch, result).Inc()
	m.unitDuration.WithLabelValues(batch).Observe(out.duration.Seconds())
	if out.hookErr != nil {
		m.hookFailures.WithLabelValues(batch).Inc()
	}
}

func (m *Metrics) started(batch string) {
	if m != nil {
		m.inflight.WithLabelValues(batch).Inc()
	}
}

func (m *Metrics) finished(batch string) {
	if m != nil {
		m.inflight.WithLabelValues(batch).Dec()
	}
}
