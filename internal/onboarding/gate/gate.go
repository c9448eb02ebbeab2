package gate

import (
	"context"
	"net/http"

	"cynergists/internal/agent"
	"cynergists/internal/onboarding/metrics"
	"cynergists/internal/platform/tracer"
	id "cynergists/pkg/domain"
	"cynergists/pkg/platform/httputil"
)

// Rejection codes returned to clients blocked by the gate.
const (
	CodeOnboardingRequired      = "onboarding_required"
	CodeAgentOnboardingRequired = "agent_onboarding_required"
)

// Checker is the read-only view of onboarding state the gate consults.
type Checker interface {
	IsComplete(ctx context.Context, tenantID id.TenantID, agentName string) (bool, error)
	IsPrimaryComplete(ctx context.Context, tenantID id.TenantID) (bool, error)
}

// Decision is the outcome of one gate evaluation. When Allowed is false,
// ErrorCode and Agent describe the structured 403 payload: Agent names the
// persona the client should be redirected to (the primary agent for
// onboarding_required, the target agent for agent_onboarding_required).
type Decision struct {
	Allowed   bool
	ErrorCode string
	Agent     string
}

// Gate decides whether an inbound agent message may proceed. It only reads
// onboarding state; transitions are triggered by the conversation flow.
type Gate struct {
	checker Checker
	catalog *agent.Catalog
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(g *Gate)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gate) {
		g.tracer = t
	}
}

func New(checker Checker, catalog *agent.Catalog, opts ...Option) *Gate {
	g := &Gate{
		checker: checker,
		catalog: catalog,
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates gating order for one inbound message:
//
//  1. The primary agent is never gated by itself.
//  2. Every other agent requires the tenant's primary onboarding first.
//  3. Agents configured with their own onboarding additionally require
//     their tracked state to be completed.
func (g *Gate) Check(ctx context.Context, tenantID id.TenantID, target *agent.Agent) (d Decision, err error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanGateCheck,
		tracer.String("tenant_id", tenantID.String()),
		tracer.String("agent", target.Name),
	)
	defer func() { span.End(err) }()

	if target.Primary {
		return g.allow(), nil
	}

	primaryComplete, err := g.checker.IsPrimaryComplete(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	if !primaryComplete {
		return g.reject(CodeOnboardingRequired, g.catalog.Primary().Name), nil
	}

	if target.RequiresOnboarding {
		complete, err := g.checker.IsComplete(ctx, tenantID, target.Name)
		if err != nil {
			return Decision{}, err
		}
		if !complete {
			return g.reject(CodeAgentOnboardingRequired, target.Name), nil
		}
	}

	return g.allow(), nil
}

func (g *Gate) allow() Decision {
	g.metrics.IncrementGateDecision("allowed")
	return Decision{Allowed: true}
}

func (g *Gate) reject(code, agentName string) Decision {
	g.metrics.IncrementGateDecision(code)
	return Decision{ErrorCode: code, Agent: agentName}
}

// Middleware wraps a route so gated agents are rejected before the handler
// runs. resolve extracts the tenant and target agent name from the request;
// resolution failures are written as domain errors.
func (g *Gate) Middleware(resolve func(r *http.Request) (id.TenantID, string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, agentName, err := resolve(r)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			target, err := g.catalog.Resolve(agentName)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			decision, err := g.Check(r.Context(), tenantID, target)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if !decision.Allowed {
				WriteRejection(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRejection writes the structured 403 payload for a blocked message.
func WriteRejection(w http.ResponseWriter, d Decision) {
	httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
		"error": d.ErrorCode,
		"agent": d.Agent,
	})
}
