package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adminpkg "cynergists/internal/admin"
	"cynergists/internal/agent"
	agenthandler "cynergists/internal/agent/handler"
	"cynergists/internal/agent/responder"
	agentservice "cynergists/internal/agent/service"
	"cynergists/internal/audit"
	"cynergists/internal/conversation"
	"cynergists/internal/onboarding/adapters"
	"cynergists/internal/onboarding/gate"
	onboardingservice "cynergists/internal/onboarding/service"
	onboardingstore "cynergists/internal/onboarding/store"
	"cynergists/internal/platform/health"
	"cynergists/internal/platform/middleware"
	tenanthandler "cynergists/internal/tenant/handler"
	tenantservice "cynergists/internal/tenant/service"
	tenantstore "cynergists/internal/tenant/store"
	id "cynergists/pkg/domain"
)

const (
	testSigningKey = "test-signing-key"
	testAdminToken = "test-admin-token"
)

type portal struct {
	router   http.Handler
	tenantID id.TenantID
	token    string
}

func newPortal(t *testing.T, replies ...string) *portal {
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
		tenantservice.WithAgentResolver(catalog),
	)
	onboarding := onboardingservice.New(
		onboardingstore.NewInMemoryStore(),
		adapters.NewTenantAdapter(tenants),
		catalog,
		onboardingservice.WithLogger(logger),
		onboardingservice.WithAuditRecorder(recorder),
	)
	g := gate.New(onboarding, catalog)

	msgSvc := agentservice.New(
		catalog,
		tenants,
		g,
		conversation.NewInMemoryStore(),
		responder.NewScripted(replies...),
		onboarding,
		agentservice.WithLogger(logger),
	)

	adminSvc := adminpkg.NewService(tenants, onboarding, publisher, catalog, logger)

	userID := id.NewUserID()
	tenant, err := tenants.CreateTenant(context.Background(), userID, "Acme", "acme")
	require.NoError(t, err)

	token, err := middleware.IssueToken(testSigningKey, middleware.PortalClaims{
		UserID:   userID.String(),
		TenantID: tenant.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	router := NewRouter(
		Config{AdminToken: testAdminToken, JWTSigningKey: testSigningKey},
		Handlers{
			Tenant: tenanthandler.New(tenants, logger),
			Agent:  agenthandler.New(msgSvc, catalog, logger, agenthandler.WithGate(g)),
			Admin:  adminpkg.New(adminSvc, logger),
			Health: health.New("test"),
		},
		logger,
	)

	return &portal{router: router, tenantID: tenant.ID, token: token}
}

func (p *portal) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, req)
	return rec
}

func (p *portal) message(t *testing.T, agentName, text string) *httptest.ResponseRecorder {
	t.Helper()
	return p.do(t, http.MethodPost, "/agents/"+agentName+"/message", map[string]string{"message": text}, true)
}

func TestRouter_RequiresAuth(t *testing.T) {
	p := newPortal(t, "hello")

	rec := p.do(t, http.MethodPost, "/agents/cynessa/message", map[string]string{"message": "hi"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_HealthOpen(t *testing.T) {
	p := newPortal(t)

	rec := p.do(t, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	p := newPortal(t)

	rec := p.do(t, http.MethodGet, "/admin/stats", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	res := httptest.NewRecorder()
	p.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
}

// The full gating order over HTTP: fresh tenant talks to the primary agent
// only, completing primary onboarding unlocks ungated agents, and agents
// with their own onboarding stay gated until separately completed.
func TestRouter_OnboardingGatingScenario(t *testing.T) {
	p := newPortal(t,
		"Welcome! Tell me about your business.",
		"Everything's set. [onboarding_complete]",
		"Apex reporting in.",
	)

	// Primary agent is never gated.
	rec := p.message(t, "cynessa", "hi")
	require.Equal(t, http.StatusOK, rec.Code)

	// Non-primary rejected before primary completion.
	rec = p.message(t, "apex", "hi")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var rejection map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejection))
	assert.Equal(t, "onboarding_required", rejection["error"])
	assert.Equal(t, "cynessa", rejection["agent"])

	// Primary completes via the conversation.
	rec = p.message(t, "cynessa", "here is everything")
	require.Equal(t, http.StatusOK, rec.Code)
	var reply map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, true, reply["success"])
	assert.NotContains(t, reply["assistantMessage"], "[onboarding_complete]")

	// Ungated agent now allowed.
	rec = p.message(t, "apex", "hi")
	require.Equal(t, http.StatusOK, rec.Code)

	// Arsenal still needs its own onboarding.
	rec = p.message(t, "arsenal", "hi")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejection))
	assert.Equal(t, "agent_onboarding_required", rejection["error"])
	assert.Equal(t, "arsenal", rejection["agent"])

	// Admin completes arsenal onboarding out of band.
	req := httptest.NewRequest(http.MethodPost,
		"/admin/tenants/"+p.tenantID.String()+"/agents/arsenal/onboarding/complete", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	res := httptest.NewRecorder()
	p.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	rec = p.message(t, "arsenal", "hi")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// History for a gated agent is blocked the same way messages are, before
// the handler runs.
func TestRouter_HistoryGated(t *testing.T) {
	p := newPortal(t, "done [onboarding_complete]")

	rec := p.do(t, http.MethodGet, "/agents/apex/history", nil, true)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var rejection map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejection))
	assert.Equal(t, "onboarding_required", rejection["error"])
	assert.Equal(t, "cynessa", rejection["agent"])

	rec = p.message(t, "cynessa", "finish")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = p.do(t, http.MethodGet, "/agents/apex/history", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Admin reset closes the gate again, including the legacy flag for the
// primary agent.
func TestRouter_AdminResetReclosesGate(t *testing.T) {
	p := newPortal(t,
		"done [onboarding_complete]",
		"Apex here.",
	)

	rec := p.message(t, "cynessa", "finish")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = p.message(t, "apex", "hi")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost,
		"/admin/tenants/"+p.tenantID.String()+"/agents/cynessa/onboarding/reset", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	res := httptest.NewRecorder()
	p.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	rec = p.message(t, "apex", "hi")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
