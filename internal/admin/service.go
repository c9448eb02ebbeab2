package admin

import (
	"context"
	"log/slog"

	"cynergists/internal/agent"
	"cynergists/internal/audit"
	onboardingmodels "cynergists/internal/onboarding/models"
	tenantmodels "cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
)

// TenantService is the tenant surface the admin CRM uses.
type TenantService interface {
	CreateTenant(ctx context.Context, ownerUserID id.UserID, companyName, subdomain string) (*tenantmodels.Tenant, error)
	GetTenantDetails(ctx context.Context, tenantID id.TenantID) (*tenantmodels.TenantDetails, error)
	SuspendTenant(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
	ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
	Count(ctx context.Context) (int, error)
}

// OnboardingService is the onboarding surface the admin CRM uses.
type OnboardingService interface {
	AllStates(ctx context.Context, tenantID id.TenantID) (map[string]onboardingmodels.State, error)
	MarkCompleted(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) (*onboardingmodels.OnboardingState, error)
	Reset(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) error
}

// AuditReader lists stored audit entries for the dashboard.
type AuditReader interface {
	List(ctx context.Context, tenantID id.TenantID) ([]audit.Entry, error)
}

// Service aggregates the domain services behind the admin endpoints.
type Service struct {
	tenants    TenantService
	onboarding OnboardingService
	auditLog   AuditReader
	catalog    *agent.Catalog
	logger     *slog.Logger
}

func NewService(tenants TenantService, onboarding OnboardingService, auditLog AuditReader, catalog *agent.Catalog, logger *slog.Logger) *Service {
	return &Service{
		tenants:    tenants,
		onboarding: onboarding,
		auditLog:   auditLog,
		catalog:    catalog,
		logger:     logger,
	}
}

// TenantDetails loads a tenant with its subscriptions and a complete
// onboarding table: every catalog agent appears, absent rows shown as
// not_started.
func (s *Service) TenantDetails(ctx context.Context, tenantID id.TenantID) (*tenantmodels.TenantDetails, error) {
	details, err := s.tenants.GetTenantDetails(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tracked, err := s.onboarding.AllStates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	states := make(map[string]string, len(s.catalog.All()))
	for _, a := range s.catalog.All() {
		states[a.Name] = string(onboardingmodels.StateNotStarted)
	}
	for name, state := range tracked {
		states[name] = string(state)
	}
	details.OnboardingStates = states

	return details, nil
}

// ResetOnboarding forces a (tenant, agent) pair back to not_started.
// The onboarding service clears the tenant's legacy flag when the target is
// the primary agent and audits the reset with the acting admin.
func (s *Service) ResetOnboarding(ctx context.Context, tenantID id.TenantID, agentName string, actor id.UserID) (string, error) {
	a, err := s.catalog.Resolve(agentName)
	if err != nil {
		return "", err
	}
	if err := s.onboarding.Reset(ctx, tenantID, a.Name, actor); err != nil {
		return "", err
	}
	return a.Name, nil
}

// CompleteOnboarding marks a pair completed on behalf of an admin, the
// one-step create+complete path for backend automations.
func (s *Service) CompleteOnboarding(ctx context.Context, tenantID id.TenantID, agentName string, actor id.UserID) (*onboardingmodels.OnboardingState, error) {
	return s.onboarding.MarkCompleted(ctx, tenantID, agentName, actor)
}

// AuditEntries lists the audit trail for a tenant.
func (s *Service) AuditEntries(ctx context.Context, tenantID id.TenantID, limit int) ([]audit.Entry, error) {
	entries, err := s.auditLog.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Stats summarizes portal state for the dashboard.
type Stats struct {
	TenantCount int      `json:"tenant_count"`
	Agents      []string `json:"agents"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.tenants.Count(ctx)
	if err != nil {
		return nil, err
	}
	agents := make([]string, 0, len(s.catalog.All()))
	for _, a := range s.catalog.All() {
		agents = append(agents, a.Name)
	}
	return &Stats{TenantCount: count, Agents: agents}, nil
}
