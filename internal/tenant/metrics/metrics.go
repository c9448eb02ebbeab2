package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TenantsCreated prometheus.Counter
	AgentsAttached prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		AgentsAttached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_agents_attached_total",
			Help: "Total number of agent subscriptions attached to tenants",
		}),
	}
}

func (m *Metrics) IncrementTenantsCreated() {
	if m == nil {
		return
	}
	m.TenantsCreated.Inc()
}

func (m *Metrics) IncrementAgentsAttached() {
	if m == nil {
		return
	}
	m.AgentsAttached.Inc()
}
