package store

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"cynergists/internal/sentinel"
	"cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemoryTenantStore stores tenants in memory for dev and tests.
type InMemoryTenantStore struct {
	mu           sync.RWMutex
	tenants      map[string]*models.Tenant
	subdomainIdx map[string]string
	ownerIdx     map[string]string
}

// NewInMemoryTenantStore creates an in-memory tenant store.
func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{
		tenants:      make(map[string]*models.Tenant),
		subdomainIdx: make(map[string]string),
		ownerIdx:     make(map[string]string),
	}
}

// CreateIfSubdomainAvailable atomically creates the tenant if the subdomain is
// not already taken (case-insensitive).
func (s *InMemoryTenantStore) CreateIfSubdomainAvailable(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(t.Subdomain)
	if _, exists := s.subdomainIdx[lower]; exists {
		return fmt.Errorf("subdomain must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	key := t.ID.String()
	s.tenants[key] = cloneTenant(t)
	s.subdomainIdx[lower] = key
	s.ownerIdx[t.OwnerUserID.String()] = key
	return nil
}

// Update replaces an existing tenant record.
func (s *InMemoryTenantStore) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.ID.String()
	existing, ok := s.tenants[key]
	if !ok {
		return ErrNotFound
	}
	delete(s.subdomainIdx, strings.ToLower(existing.Subdomain))
	s.tenants[key] = cloneTenant(t)
	s.subdomainIdx[strings.ToLower(t.Subdomain)] = key
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *InMemoryTenantStore) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[tenantID.String()]; ok {
		return cloneTenant(t), nil
	}
	return nil, ErrNotFound
}

// FindBySubdomain retrieves a tenant by subdomain (case-insensitive).
func (s *InMemoryTenantStore) FindBySubdomain(_ context.Context, subdomain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.subdomainIdx[strings.ToLower(subdomain)]; ok {
		return cloneTenant(s.tenants[key]), nil
	}
	return nil, ErrNotFound
}

// FindByOwner retrieves the tenant owned by the given user.
func (s *InMemoryTenantStore) FindByOwner(_ context.Context, ownerUserID id.UserID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.ownerIdx[ownerUserID.String()]; ok {
		return cloneTenant(s.tenants[key]), nil
	}
	return nil, ErrNotFound
}

// cloneTenant copies the record including its settings map so callers can
// never mutate stored state through a returned pointer.
func cloneTenant(t *models.Tenant) *models.Tenant {
	copied := *t
	if t.Settings != nil {
		copied.Settings = maps.Clone(t.Settings)
	}
	return &copied
}

// Count returns the total number of tenants.
func (s *InMemoryTenantStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}

// InMemorySubscriptionStore stores subscriptions in memory for dev and tests.
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string][]*models.Subscription
}

// NewInMemorySubscriptionStore creates an in-memory subscription store.
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{subs: make(map[string][]*models.Subscription)}
}

// Create appends a subscription for a tenant.
func (s *InMemorySubscriptionStore) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sub.TenantID.String()
	for _, existing := range s.subs[key] {
		if existing.AgentName == sub.AgentName && existing.Status == models.SubscriptionStatusActive {
			return fmt.Errorf("agent already subscribed: %w", sentinel.ErrAlreadyUsed)
		}
	}
	copied := *sub
	s.subs[key] = append(s.subs[key], &copied)
	return nil
}

// ListByTenant returns all subscriptions for a tenant.
func (s *InMemorySubscriptionStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Subscription, 0, len(s.subs[tenantID.String()]))
	for _, sub := range s.subs[tenantID.String()] {
		copied := *sub
		out = append(out, &copied)
	}
	return out, nil
}

// CountByTenant returns the number of subscriptions for a tenant.
func (s *InMemorySubscriptionStore) CountByTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[tenantID.String()]), nil
}
