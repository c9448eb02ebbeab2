package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cynergists/internal/agent"
	"cynergists/internal/audit"
	"cynergists/internal/onboarding/models"
	"cynergists/internal/onboarding/store"
	id "cynergists/pkg/domain"
)

type fakeTenantGateway struct {
	mu       sync.Mutex
	complete map[string]bool
}

func newFakeTenantGateway() *fakeTenantGateway {
	return &fakeTenantGateway{complete: make(map[string]bool)}
}

func (f *fakeTenantGateway) LegacyOnboardingComplete(_ context.Context, tenantID id.TenantID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete[tenantID.String()], nil
}

func (f *fakeTenantGateway) MarkLegacyOnboardingComplete(_ context.Context, tenantID id.TenantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete[tenantID.String()] = true
	return nil
}

func (f *fakeTenantGateway) ClearLegacyOnboardingComplete(_ context.Context, tenantID id.TenantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.complete, tenantID.String())
	return nil
}

type capturingEmitter struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *capturingEmitter) Emit(_ context.Context, entry audit.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return nil
}

func (c *capturingEmitter) all() []audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Entry(nil), c.entries...)
}

func newTestService(t *testing.T) (*Service, *fakeTenantGateway, *capturingEmitter) {
	t.Helper()
	gateway := newFakeTenantGateway()
	emitter := &capturingEmitter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(
		store.NewInMemoryStore(),
		gateway,
		agent.DefaultCatalog(),
		WithLogger(logger),
		WithAuditRecorder(audit.NewRecorder(logger, emitter)),
	)
	return svc, gateway, emitter
}

func TestGetOrCreateState_DefaultsToNotStarted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	complete, err := svc.IsComplete(ctx, tenantID, "apex")
	require.NoError(t, err)
	assert.False(t, complete)

	state, err := svc.GetOrCreateState(ctx, tenantID, "apex")
	require.NoError(t, err)
	assert.Equal(t, models.StateNotStarted, state.State)
	assert.Nil(t, state.StartedAt)
	assert.Nil(t, state.CompletedAt)
}

func TestGetOrCreateState_ResolvesAliases(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	state, err := svc.GetOrCreateState(ctx, tenantID, "iris")
	require.NoError(t, err)
	assert.Equal(t, "cynessa", state.AgentName)
}

func TestGetOrCreateState_UnknownAgent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetOrCreateState(context.Background(), id.NewTenantID(), "nonexistent")
	assert.Error(t, err)
}

func TestMarkStarted_IdempotentStartedAt(t *testing.T) {
	svc, _, emitter := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actor := id.NewUserID()

	first, err := svc.MarkStarted(ctx, tenantID, "apex", actor)
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)
	assert.Equal(t, models.StateInProgress, first.State)

	second, err := svc.MarkStarted(ctx, tenantID, "apex", actor)
	require.NoError(t, err)
	assert.Equal(t, *first.StartedAt, *second.StartedAt)

	// Every invocation audits, even the no-op.
	assert.Len(t, emitter.all(), 2)
}

func TestMarkCompleted_StandaloneAndAfterStart(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	actor := id.NewUserID()

	// One-step create+complete without a prior start.
	tenantA := id.NewTenantID()
	state, err := svc.MarkCompleted(ctx, tenantA, "apex", actor)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, state.State)
	assert.Nil(t, state.StartedAt)
	require.NotNil(t, state.CompletedAt)

	// completed_at >= started_at when both are present.
	tenantB := id.NewTenantID()
	started, err := svc.MarkStarted(ctx, tenantB, "apex", actor)
	require.NoError(t, err)
	completed, err := svc.MarkCompleted(ctx, tenantB, "apex", actor)
	require.NoError(t, err)
	assert.False(t, completed.CompletedAt.Before(*started.StartedAt))
}

func TestMarkCompleted_PrimarySetsLegacyFlag(t *testing.T) {
	svc, gateway, _ := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	_, err := svc.MarkCompleted(ctx, tenantID, "cynessa", id.NewUserID())
	require.NoError(t, err)

	legacy, err := gateway.LegacyOnboardingComplete(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, legacy)
}

func TestMarkCompleted_NonPrimaryLeavesLegacyFlag(t *testing.T) {
	svc, gateway, _ := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	_, err := svc.MarkCompleted(ctx, tenantID, "apex", id.NewUserID())
	require.NoError(t, err)

	legacy, err := gateway.LegacyOnboardingComplete(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, legacy)
}

func TestIsPrimaryComplete_HonorsBothSignals(t *testing.T) {
	svc, gateway, _ := newTestService(t)
	ctx := context.Background()

	// Legacy flag only (pre-tracker tenant).
	tenantA := id.NewTenantID()
	require.NoError(t, gateway.MarkLegacyOnboardingComplete(ctx, tenantA))
	complete, err := svc.IsPrimaryComplete(ctx, tenantA)
	require.NoError(t, err)
	assert.True(t, complete)

	// Tracked state only.
	tenantB := id.NewTenantID()
	gateway.complete = map[string]bool{}
	_, err = svc.MarkCompleted(ctx, tenantB, "cynessa", id.NewUserID())
	require.NoError(t, err)
	// MarkCompleted sets the legacy flag too; clear it to isolate the
	// tracked-state signal.
	require.NoError(t, gateway.ClearLegacyOnboardingComplete(ctx, tenantB))
	complete, err = svc.IsPrimaryComplete(ctx, tenantB)
	require.NoError(t, err)
	assert.True(t, complete)

	// Neither signal.
	complete, err = svc.IsPrimaryComplete(ctx, id.NewTenantID())
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestReset_DeletesRowAndClearsLegacyForPrimary(t *testing.T) {
	svc, gateway, emitter := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actor := id.NewUserID()
	admin := id.NewUserID()

	_, err := svc.MarkCompleted(ctx, tenantID, "cynessa", actor)
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, tenantID, "cynessa", admin))

	// Fresh row with null timestamps after reset.
	state, err := svc.GetOrCreateState(ctx, tenantID, "cynessa")
	require.NoError(t, err)
	assert.Equal(t, models.StateNotStarted, state.State)
	assert.Nil(t, state.StartedAt)
	assert.Nil(t, state.CompletedAt)

	legacy, err := gateway.LegacyOnboardingComplete(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, legacy)

	entries := emitter.all()
	last := entries[len(entries)-1]
	assert.Equal(t, audit.EventOnboardingReset, last.Event)
	assert.Equal(t, admin.String(), last.Metadata["reset_by"])
}

func TestReset_NonPrimaryKeepsLegacyFlag(t *testing.T) {
	svc, gateway, _ := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	require.NoError(t, gateway.MarkLegacyOnboardingComplete(ctx, tenantID))
	_, err := svc.MarkCompleted(ctx, tenantID, "arsenal", id.NewUserID())
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, tenantID, "arsenal", id.NewUserID()))

	legacy, err := gateway.LegacyOnboardingComplete(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, legacy)
}

func TestAllStates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actor := id.NewUserID()

	_, err := svc.MarkStarted(ctx, tenantID, "apex", actor)
	require.NoError(t, err)
	_, err = svc.MarkCompleted(ctx, tenantID, "cynessa", actor)
	require.NoError(t, err)

	states, err := svc.AllStates(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.State{
		"apex":    models.StateInProgress,
		"cynessa": models.StateCompleted,
	}, states)
}

func TestMarkCompleted_UsesInjectedClock(t *testing.T) {
	gateway := newFakeTenantGateway()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := New(
		store.NewInMemoryStore(),
		gateway,
		agent.DefaultCatalog(),
		WithClock(func() time.Time { return fixed }),
	)

	state, err := svc.MarkCompleted(context.Background(), id.NewTenantID(), "apex", id.NewUserID())
	require.NoError(t, err)
	assert.Equal(t, fixed, *state.CompletedAt)
}
