package audit

import (
	"context"
	"sync"

	id "cynergists/pkg/domain"
)

// InMemoryStore keeps audit entries in memory for dev and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.TenantID.String()
	s.entries[key] = append(s.entries[key], entry)
	return nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[tenantID.String()]...), nil
}
