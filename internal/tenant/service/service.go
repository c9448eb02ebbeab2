package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cynergists/internal/agent"
	"cynergists/internal/audit"
	"cynergists/internal/sentinel"
	tenantmetrics "cynergists/internal/tenant/metrics"
	"cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
)

type TenantStore interface {
	CreateIfSubdomainAvailable(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	FindByOwner(ctx context.Context, ownerUserID id.UserID) (*models.Tenant, error)
	Count(ctx context.Context) (int, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error)
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
}

// AgentResolver validates agent names against the persona catalog.
type AgentResolver interface {
	Resolve(name string) (*agent.Agent, error)
}

// Service orchestrates tenant and subscription management.
type Service struct {
	tenants  TenantStore
	subs     SubscriptionStore
	tx       StoreTx
	agents   AgentResolver
	logger   *slog.Logger
	recorder *audit.Recorder
	metrics  *tenantmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStoreTx sets the transactional boundary used by AttachAgent.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithAgentResolver makes AttachAgent reject agent names outside the catalog
// and store the canonical name on the subscription.
func WithAgentResolver(r AgentResolver) Option {
	return func(s *Service) {
		s.agents = r
	}
}

func New(tenants TenantStore, subs SubscriptionStore, opts ...Option) *Service {
	s := &Service{tenants: tenants, subs: subs}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	return s
}

// CreateTenant creates a tenant for the given owner. An empty subdomain gets a
// temporary auto-generated one the onboarding conversation later replaces.
func (s *Service) CreateTenant(ctx context.Context, ownerUserID id.UserID, companyName, subdomain string) (*models.Tenant, error) {
	if ownerUserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "owner user ID required")
	}
	if strings.TrimSpace(subdomain) == "" {
		subdomain = temporarySubdomain()
	}

	t, err := models.NewTenant(id.NewTenantID(), ownerUserID, companyName, subdomain, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.tenants.CreateIfSubdomainAvailable(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "subdomain must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	s.record(ctx, audit.Entry{
		TenantID:    t.ID,
		Event:       audit.EventTenantCreated,
		ActorUserID: ownerUserID,
	})
	s.metrics.IncrementTenantsCreated()

	return t, nil
}

// GetTenant fetches a tenant by ID.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant ID required")
	}
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant")
	}
	return tenant, nil
}

// GetTenantDetails fetches tenant metadata with subscriptions for admin views.
func (s *Service) GetTenantDetails(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	subs, err := s.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscriptions")
	}
	return &models.TenantDetails{
		Tenant:            tenant,
		Subscriptions:     subs,
		SubscriptionCount: len(subs),
	}, nil
}

// FindByOwner returns the tenant owned by a user, if any.
func (s *Service) FindByOwner(ctx context.Context, ownerUserID id.UserID) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant by owner")
	}
	return tenant, nil
}

// UpdateSetting stores one key/value pair on the tenant's settings blob.
func (s *Service) UpdateSetting(ctx context.Context, tenantID id.TenantID, key, value string) (*models.Tenant, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "setting key is required")
	}
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	tenant.SetSetting(key, value, time.Now())
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, wrapTenantErr(err, "failed to update tenant settings")
	}
	return tenant, nil
}

// FindBySubdomain resolves a tenant by its subdomain, case-insensitively.
func (s *Service) FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	subdomain = strings.TrimSpace(subdomain)
	if subdomain == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subdomain required")
	}
	tenant, err := s.tenants.FindBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, wrapTenantErr(err, "failed to load tenant by subdomain")
	}
	return tenant, nil
}

// AttachAgent creates (or reuses) the owner's tenant and grants agent access,
// all inside one transaction: the tenant+subscription pair exists atomically
// or not at all.
func (s *Service) AttachAgent(ctx context.Context, ownerUserID id.UserID, companyName, agentName, plan string) (*models.Tenant, *models.Subscription, error) {
	if ownerUserID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "owner user ID required")
	}
	if s.agents != nil {
		persona, err := s.agents.Resolve(agentName)
		if err != nil {
			return nil, nil, err
		}
		agentName = persona.Name
	}

	var (
		tenant *models.Tenant
		sub    *models.Subscription
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.tenants.FindByOwner(ctx, ownerUserID)
		switch {
		case err == nil:
			tenant = existing
		case errors.Is(err, sentinel.ErrNotFound):
			tenant, err = models.NewTenant(id.NewTenantID(), ownerUserID, companyName, temporarySubdomain(), time.Now())
			if err != nil {
				return err
			}
			if err := s.tenants.CreateIfSubdomainAvailable(ctx, tenant); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
			}
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant by owner")
		}

		sub, err = models.NewSubscription(id.NewSubscriptionID(), tenant.ID, agentName, plan, time.Now())
		if err != nil {
			return err
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "agent already attached to tenant")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create subscription")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, audit.Entry{
		TenantID:    tenant.ID,
		Agent:       sub.AgentName,
		Event:       audit.EventAgentAttached,
		ActorUserID: ownerUserID,
	})
	s.metrics.IncrementAgentsAttached()

	return tenant, sub, nil
}

// Count returns the total number of tenants.
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.tenants.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count tenants")
	}
	return count, nil
}

// ListSubscriptions returns a tenant's subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	subs, err := s.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscriptions")
	}
	return subs, nil
}

// SuspendTenant transitions a tenant to suspended status.
func (s *Service) SuspendTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Suspend(time.Now()); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "tenant is already suspended")
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	s.record(ctx, audit.Entry{TenantID: tenant.ID, Event: audit.EventTenantSuspended})
	return tenant, nil
}

// ReactivateTenant transitions a tenant to active status.
func (s *Service) ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Reactivate(time.Now()); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "tenant is already active")
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	s.record(ctx, audit.Entry{TenantID: tenant.ID, Event: audit.EventTenantReactivated})
	return tenant, nil
}

// LegacyOnboardingComplete reports the tenant's legacy primary-agent flag.
func (s *Service) LegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) (bool, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return tenant.OnboardingCompletedAt != nil, nil
}

// MarkLegacyOnboardingComplete stamps the tenant's legacy flag. Idempotent.
func (s *Service) MarkLegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) error {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	tenant.MarkLegacyOnboardingComplete(time.Now())
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	return nil
}

// ClearLegacyOnboardingComplete removes the tenant's legacy flag.
func (s *Service) ClearLegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) error {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	tenant.ClearLegacyOnboardingComplete(time.Now())
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	return nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, entry)
}

func wrapTenantErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// temporarySubdomain generates a placeholder subdomain for tenants created
// before the onboarding conversation collects a real one.
func temporarySubdomain() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return "pending-" + hex.EncodeToString(buf)
}
