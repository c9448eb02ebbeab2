package handler

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

	"cynergists/internal/platform/middleware"
	"cynergists/internal/tenant/service"
	"cynergists/internal/tenant/store"
	id "cynergists/pkg/domain"
)

func newTestHandler(t *testing.T) (*Handler, *service.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(
		store.NewInMemoryTenantStore(),
		store.NewInMemorySubscriptionStore(),
		service.WithLogger(logger),
	)
	return New(svc, logger), svc
}

func doRequest(h *Handler, method, path string, body any, userID id.UserID, tenantID id.TenantID) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.Register(router)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID, tenantID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateMyTenant(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := id.NewUserID()

	rec := doRequest(h, http.MethodPost, "/me/tenant", map[string]string{
		"company_name": "Bright Smile Dental",
		"subdomain":    "brightsmile",
	}, userID, id.TenantID{})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp TenantCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TenantID)
	assert.Equal(t, "brightsmile", resp.Tenant.Subdomain)
	assert.Equal(t, "Bright Smile Dental", resp.Tenant.CompanyName)
}

func TestHandleCreateMyTenant_MissingCompanyName(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h, http.MethodPost, "/me/tenant", map[string]string{
		"subdomain": "acme",
	}, id.NewUserID(), id.TenantID{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateMyTenant_DuplicateSubdomain(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h, http.MethodPost, "/me/tenant", map[string]string{
		"company_name": "First",
		"subdomain":    "taken",
	}, id.NewUserID(), id.TenantID{})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, http.MethodPost, "/me/tenant", map[string]string{
		"company_name": "Second",
		"subdomain":    "taken",
	}, id.NewUserID(), id.TenantID{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleAttachAgent_CreatesTenant(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := id.NewUserID()

	rec := doRequest(h, http.MethodPost, "/me/agents", map[string]string{
		"agent":        "Apex",
		"company_name": "Acme",
		"plan":         "pro",
	}, userID, id.TenantID{})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AttachAgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "apex", resp.Subscription.Agent)
	assert.Equal(t, "pro", resp.Subscription.Plan)
	assert.NotEmpty(t, resp.Tenant.ID)
}

func TestHandleAttachAgent_DuplicateAgent(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := id.NewUserID()

	body := map[string]string{"agent": "apex", "company_name": "Acme"}
	rec := doRequest(h, http.MethodPost, "/me/agents", body, userID, id.TenantID{})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, http.MethodPost, "/me/agents", body, userID, id.TenantID{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleGetMyTenant(t *testing.T) {
	h, svc := newTestHandler(t)
	userID := id.NewUserID()

	_, _, err := svc.AttachAgent(context.Background(), userID, "Acme", "apex", "")
	require.NoError(t, err)

	rec := doRequest(h, http.MethodGet, "/me/tenant", nil, userID, id.TenantID{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TenantWithSubscriptionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Tenant.CompanyName)
	require.Len(t, resp.Subscriptions, 1)
	assert.Equal(t, "apex", resp.Subscriptions[0].Agent)
}

func TestHandleGetMyTenant_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h, http.MethodGet, "/me/tenant", nil, id.NewUserID(), id.TenantID{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
