package store

import (
	"context"
	"strings"
	"sync"

	"cynergists/internal/onboarding/models"
	"cynergists/internal/sentinel"
	id "cynergists/pkg/domain"
)

// ErrNotFound is returned when no row exists for a (tenant, agent) pair.
var ErrNotFound = sentinel.ErrNotFound

// InMemoryStore tracks onboarding rows in memory for dev and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]*models.OnboardingState
}

// NewInMemoryStore creates an in-memory onboarding state store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]*models.OnboardingState)}
}

func key(tenantID id.TenantID, agentName string) string {
	return tenantID.String() + "/" + strings.ToLower(agentName)
}

// Find retrieves the row for a pair, or ErrNotFound when none exists.
func (s *InMemoryStore) Find(_ context.Context, tenantID id.TenantID, agentName string) (*models.OnboardingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[key(tenantID, agentName)]; ok {
		copied := *state
		return &copied, nil
	}
	return nil, ErrNotFound
}

// Save upserts the row for a pair.
func (s *InMemoryStore) Save(_ context.Context, state *models.OnboardingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	s.states[key(state.TenantID, state.AgentName)] = &copied
	return nil
}

// Delete removes the row for a pair. Deleting an absent row is not an error;
// the pair is already at its implicit default.
func (s *InMemoryStore) Delete(_ context.Context, tenantID id.TenantID, agentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key(tenantID, agentName))
	return nil
}

// ListByTenant returns every tracked row for a tenant, in no defined order.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.OnboardingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := tenantID.String() + "/"
	var out []*models.OnboardingState
	for k, state := range s.states {
		if strings.HasPrefix(k, prefix) {
			copied := *state
			out = append(out, &copied)
		}
	}
	return out, nil
}
