// Package observability holds the Prometheus instrumentation for rule runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the rule engine collectors. Register them once on a
// registry at startup; the runner increments them per unit.
type Metrics struct {
	RulesEvaluated *prometheus.CounterVec
	TriggersFired  *prometheus.CounterVec
	UnitFailures   *prometheus.CounterVec
	ApplyDuration  *prometheus.HistogramVec
	RunDuration    prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RulesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrules",
			Name:      "units_evaluated_total",
			Help:      "Rule/ad-group units evaluated, by outcome status.",
		}, []string{"status"}),
		TriggersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrules",
			Name:      "triggers_fired_total",
			Help:      "Targets changed by rule actions, by action type.",
		}, []string{"action"}),
		UnitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrules",
			Name:      "unit_failures_total",
			Help:      "Failed rule/ad-group units, by failure reason.",
		}, []string{"reason"}),
		ApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adrules",
			Name:      "unit_apply_seconds",
			Help:      "Wall time spent applying one rule to one ad group.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adrules",
			Name:      "run_seconds",
			Help:      "Wall time of a full batch run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	for _, c := range []prometheus.Collector{
		m.RulesEvaluated, m.TriggersFired, m.UnitFailures, m.ApplyDuration, m.RunDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
