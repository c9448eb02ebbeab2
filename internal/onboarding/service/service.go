package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cynergists/internal/agent"
	"cynergists/internal/audit"
	"cynergists/internal/onboarding/metrics"
	"cynergists/internal/onboarding/models"
	"cynergists/internal/sentinel"
	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
)

// Store is the persistence interface for onboarding rows.
type Store interface {
	Find(ctx context.Context, tenantID id.TenantID, agentName string) (*models.OnboardingState, error)
	Save(ctx context.Context, state *models.OnboardingState) error
	Delete(ctx context.Context, tenantID id.TenantID, agentName string) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.OnboardingState, error)
}

// TenantGateway exposes the legacy completion flag on the tenant record.
// The primary agent's completion predates the per-agent tracker; read paths
// must honor both signals until existing tenants are backfilled.
type TenantGateway interface {
	LegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) (bool, error)
	MarkLegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) error
	ClearLegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) error
}

// Service is the single source of truth for whether a (tenant, agent) pair
// has completed onboarding.
//
// The mutation contract is "always log, conditionally transition": MarkStarted
// and MarkCompleted append an audit entry on every invocation even when the
// state does not change, so repeated user attempts stay visible.
type Service struct {
	store    Store
	tenants  TenantGateway
	catalog  *agent.Catalog
	logger   *slog.Logger
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	now      func() time.Time
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, tenants TenantGateway, catalog *agent.Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		tenants: tenants,
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateState returns the tracked row for a pair, materializing a
// not_started row when none exists. Idempotent.
func (s *Service) GetOrCreateState(ctx context.Context, tenantID id.TenantID, agentName string) (*models.OnboardingState, error) {
	a, err := s.catalog.Resolve(agentName)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Find(ctx, tenantID, a.Name)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, sentinel.ErrNotFound):
		state = models.NewState(tenantID, a.Name, s.now())
		if err := s.store.Save(ctx, state); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create onboarding state")
		}
		return state, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load onboarding state")
	}
}

// IsComplete reports whether a pair finished onboarding. Absence of a row
// means not started, never an error.
func (s *Service) IsComplete(ctx context.Context, tenantID id.TenantID, agentName string) (bool, error) {
	a, err := s.catalog.Resolve(agentName)
	if err != nil {
		return false, err
	}
	state, err := s.store.Find(ctx, tenantID, a.Name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load onboarding state")
	}
	return state.IsComplete(), nil
}

// IsPrimaryComplete reports whether the tenant finished the primary agent's
// onboarding. True when either the legacy tenant flag or the tracked state
// says so; both signals must be honored for pre-tracker tenants.
func (s *Service) IsPrimaryComplete(ctx context.Context, tenantID id.TenantID) (bool, error) {
	legacy, err := s.tenants.LegacyOnboardingComplete(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if legacy {
		return true, nil
	}
	return s.IsComplete(ctx, tenantID, s.catalog.Primary().Name)
}

// MarkStarted transitions not_started to in_progress. Repeated calls never
// move StartedAt, but every call appends an audit entry.
func (s *Service) MarkStarted(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) (*models.OnboardingState, error) {
	state, err := s.GetOrCreateState(ctx, tenantID, agentName)
	if err != nil {
		return nil, err
	}

	if state.Start(s.now()) {
		if err := s.store.Save(ctx, state); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save onboarding state")
		}
	}

	s.record(ctx, audit.Entry{
		TenantID:    tenantID,
		Agent:       state.AgentName,
		Event:       audit.EventOnboardingStarted,
		ActorUserID: actorUserID,
	})
	s.metrics.IncrementTransition(string(audit.EventOnboardingStarted))

	return state, nil
}

// MarkCompleted unconditionally transitions to completed, valid from any
// prior state. Completing the primary agent also satisfies the tenant's
// legacy flag so both completion signals agree going forward.
func (s *Service) MarkCompleted(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) (*models.OnboardingState, error) {
	state, err := s.GetOrCreateState(ctx, tenantID, agentName)
	if err != nil {
		return nil, err
	}

	state.Complete(s.now())
	if err := s.store.Save(ctx, state); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save onboarding state")
	}

	if s.isPrimary(state.AgentName) {
		if err := s.tenants.MarkLegacyOnboardingComplete(ctx, tenantID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set legacy completion flag")
		}
	}

	s.record(ctx, audit.Entry{
		TenantID:    tenantID,
		Agent:       state.AgentName,
		Event:       audit.EventOnboardingCompleted,
		ActorUserID: actorUserID,
	})
	s.metrics.IncrementTransition(string(audit.EventOnboardingCompleted))

	return state, nil
}

// Reset deletes the tracked row, returning the pair to its implicit
// not_started default. Resetting the primary agent also clears the tenant's
// legacy flag; otherwise the stale flag would keep the gate open.
func (s *Service) Reset(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) error {
	a, err := s.catalog.Resolve(agentName)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, tenantID, a.Name); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete onboarding state")
	}

	if a.Primary {
		if err := s.tenants.ClearLegacyOnboardingComplete(ctx, tenantID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear legacy completion flag")
		}
	}

	s.record(ctx, audit.Entry{
		TenantID:    tenantID,
		Agent:       a.Name,
		Event:       audit.EventOnboardingReset,
		ActorUserID: actorUserID,
		Metadata:    map[string]string{"reset_by": actorUserID.String()},
	})
	s.metrics.IncrementTransition(string(audit.EventOnboardingReset))

	return nil
}

// AllStates returns every tracked state for a tenant keyed by agent name.
// Agents with no row are absent from the map; callers display those as
// not_started.
func (s *Service) AllStates(ctx context.Context, tenantID id.TenantID) (map[string]models.State, error) {
	states, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list onboarding states")
	}
	out := make(map[string]models.State, len(states))
	for _, state := range states {
		out[state.AgentName] = state.State
	}
	return out, nil
}

func (s *Service) isPrimary(agentName string) bool {
	return s.catalog.Primary().Name == agentName
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, entry)
}
