package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Messages          *prometheus.CounterVec
	ResponderDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_agent_messages_total",
			Help: "Total agent messages by agent and outcome",
		}, []string{"agent", "outcome"}),
		ResponderDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_responder_duration_seconds",
			Help:    "Latency of model backend calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"agent"}),
	}
}

func (m *Metrics) IncrementMessage(agent, outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(agent, outcome).Inc()
}

func (m *Metrics) ObserveResponderDuration(agent string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResponderDuration.WithLabelValues(agent).Observe(d.Seconds())
}
