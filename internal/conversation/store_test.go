package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cynergists/pkg/domain"
)

func TestInMemoryStore_AppendAndHistory(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	require.NoError(t, store.Append(ctx, tenantID, "apex",
		Message{Role: RoleUser, Content: "hi", CreatedAt: time.Now()},
		Message{Role: RoleAssistant, Content: "hello", CreatedAt: time.Now()},
	))

	history, err := store.History(ctx, tenantID, "apex")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, RoleAssistant, history[1].Role)
}

func TestInMemoryStore_KeysAreCaseNormalized(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	require.NoError(t, store.Append(ctx, tenantID, "Apex", Message{Role: RoleUser, Content: "hi"}))

	history, err := store.History(ctx, tenantID, "APEX")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInMemoryStore_IsolatedPerPair(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	require.NoError(t, store.Append(ctx, tenantID, "apex", Message{Role: RoleUser, Content: "hi"}))

	other, err := store.History(ctx, tenantID, "carbon")
	require.NoError(t, err)
	assert.Empty(t, other)

	otherTenant, err := store.History(ctx, id.NewTenantID(), "apex")
	require.NoError(t, err)
	assert.Empty(t, otherTenant)
}

func TestInMemoryStore_Clear(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	tenantID := id.NewTenantID()

	require.NoError(t, store.Append(ctx, tenantID, "apex", Message{Role: RoleUser, Content: "hi"}))
	require.NoError(t, store.Clear(ctx, tenantID, "apex"))

	history, err := store.History(ctx, tenantID, "apex")
	require.NoError(t, err)
	assert.Empty(t, history)
}
