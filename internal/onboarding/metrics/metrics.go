package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	GateDecisions *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_onboarding_transitions_total",
			Help: "Total onboarding transitions by event",
		}, []string{"event"}),
		GateDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_gate_decisions_total",
			Help: "Total gate decisions by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementTransition(event string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) IncrementGateDecision(outcome string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(outcome).Inc()
}
