package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cynergists/internal/agent"
	"cynergists/internal/audit"
	"cynergists/internal/onboarding/adapters"
	onboardingservice "cynergists/internal/onboarding/service"
	onboardingstore "cynergists/internal/onboarding/store"
	tenantservice "cynergists/internal/tenant/service"
	tenantstore "cynergists/internal/tenant/store"
	id "cynergists/pkg/domain"
)

type fixture struct {
	handler    *Handler
	tenants    *tenantservice.Service
	onboarding *onboardingservice.Service
	publisher  *audit.Publisher
	tenantID   id.TenantID
	userID     id.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := agent.DefaultCatalog()

	publisher := audit.NewPublisher(audit.NewInMemoryStore())
	recorder := audit.NewRecorder(logger, publisher)

	tenants := tenantservice.New(
		tenantstore.NewInMemoryTenantStore(),
		tenantstore.NewInMemorySubscriptionStore(),
		tenantservice.WithLogger(logger),
		tenantservice.WithAuditRecorder(recorder),
	)
	onboarding := onboardingservice.New(
		onboardingstore.NewInMemoryStore(),
		adapters.NewTenantAdapter(tenants),
		catalog,
		onboardingservice.WithLogger(logger),
		onboardingservice.WithAuditRecorder(recorder),
	)

	userID := id.NewUserID()
	tenant, err := tenants.CreateTenant(context.Background(), userID, "Acme", "acme")
	require.NoError(t, err)

	svc := NewService(tenants, onboarding, publisher, catalog, logger)
	return &fixture{
		handler:    New(svc, logger),
		tenants:    tenants,
		onboarding: onboarding,
		publisher:  publisher,
		tenantID:   tenant.ID,
		userID:     userID,
	}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	f.handler.Register(router)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleStats(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TenantCount)
	assert.Len(t, stats.Agents, 4)
}

func TestHandleCreateTenant(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/tenants", map[string]string{
		"owner_user_id": id.NewUserID().String(),
		"company_name":  "Bright Smile Dental",
		"subdomain":     "brightsmile",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "brightsmile", resp["subdomain"])
}

func TestHandleCreateTenant_InvalidOwner(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/tenants", map[string]string{
		"owner_user_id": "not-a-uuid",
		"company_name":  "Acme",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTenantDetails_IncludesFullOnboardingTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.onboarding.MarkCompleted(ctx, f.tenantID, "cynessa", f.userID)
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/admin/tenants/"+f.tenantID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TenantDetailsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.OnboardingStates["cynessa"])
	// Untracked agents still appear, shown at the implicit default.
	assert.Equal(t, "not_started", resp.OnboardingStates["apex"])
	assert.Equal(t, "not_started", resp.OnboardingStates["arsenal"])
	assert.Equal(t, "not_started", resp.OnboardingStates["carbon"])
}

func TestHandleTenantDetails_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/admin/tenants/"+id.NewTenantID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSuspendAndReactivate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/tenants/"+f.tenantID.String()+"/suspend", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "suspended", resp["status"])

	rec = f.do(http.MethodPost, "/admin/tenants/"+f.tenantID.String()+"/reactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp["status"])
}

func TestHandleResetOnboarding_PrimaryClearsLegacyFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.onboarding.MarkCompleted(ctx, f.tenantID, "cynessa", f.userID)
	require.NoError(t, err)
	legacy, err := f.tenants.LegacyOnboardingComplete(ctx, f.tenantID)
	require.NoError(t, err)
	require.True(t, legacy)

	rec := f.do(http.MethodPost, "/admin/tenants/"+f.tenantID.String()+"/agents/cynessa/onboarding/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResetOnboardingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, f.tenantID.String(), resp.TenantID)
	assert.Equal(t, "cynessa", resp.Agent)
	assert.Equal(t, "not_started", resp.State)

	legacy, err = f.tenants.LegacyOnboardingComplete(ctx, f.tenantID)
	require.NoError(t, err)
	assert.False(t, legacy)
}

func TestHandleResetOnboarding_UnknownAgent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/tenants/"+f.tenantID.String()+"/agents/bogus/onboarding/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCompleteOnboarding(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/admin/tenants/"+f.tenantID.String()+"/agents/arsenal/onboarding/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "completed", resp["state"])
}

func TestHandleAuditEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.onboarding.MarkStarted(ctx, f.tenantID, "cynessa", f.userID)
	require.NoError(t, err)
	_, err = f.onboarding.MarkCompleted(ctx, f.tenantID, "cynessa", f.userID)
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/admin/tenants/"+f.tenantID.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []audit.Entry `json:"entries"`
		Total   int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// tenant_created + onboarding_started + onboarding_completed
	assert.Equal(t, 3, resp.Total)
}
