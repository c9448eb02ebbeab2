package conversation

import (
	"context"
	"strings"
	"sync"

	id "cynergists/pkg/domain"
)

// Store persists conversation history per (tenant, agent) pair. History is
// append-only from the portal's perspective; the window derives the bounded
// view at send time.
type Store interface {
	Append(ctx context.Context, tenantID id.TenantID, agentName string, msgs ...Message) error
	History(ctx context.Context, tenantID id.TenantID, agentName string) ([]Message, error)
	Clear(ctx context.Context, tenantID id.TenantID, agentName string) error
}

// InMemoryStore keeps conversation history in memory for dev and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]Message
}

// NewInMemoryStore creates an in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{messages: make(map[string][]Message)}
}

func convKey(tenantID id.TenantID, agentName string) string {
	return tenantID.String() + "/" + strings.ToLower(agentName)
}

// Append adds messages to the end of a pair's history.
func (s *InMemoryStore) Append(_ context.Context, tenantID id.TenantID, agentName string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := convKey(tenantID, agentName)
	s.messages[key] = append(s.messages[key], msgs...)
	return nil
}

// History returns the full oldest-first history for a pair.
func (s *InMemoryStore) History(_ context.Context, tenantID id.TenantID, agentName string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.messages[convKey(tenantID, agentName)]
	out := make([]Message, len(stored))
	copy(out, stored)
	return out, nil
}

// Clear removes a pair's history.
func (s *InMemoryStore) Clear(_ context.Context, tenantID id.TenantID, agentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, convKey(tenantID, agentName))
	return nil
}
