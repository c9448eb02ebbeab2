package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cynergists/internal/agent"
	id "cynergists/pkg/domain"
)

type fakeChecker struct {
	primaryComplete bool
	complete        map[string]bool
}

func (f *fakeChecker) IsComplete(_ context.Context, _ id.TenantID, agentName string) (bool, error) {
	return f.complete[agentName], nil
}

func (f *fakeChecker) IsPrimaryComplete(_ context.Context, _ id.TenantID) (bool, error) {
	return f.primaryComplete, nil
}

func mustResolve(t *testing.T, c *agent.Catalog, name string) *agent.Agent {
	t.Helper()
	a, err := c.Resolve(name)
	require.NoError(t, err)
	return a
}

func TestCheck_PrimaryAgentNeverGated(t *testing.T) {
	catalog := agent.DefaultCatalog()
	g := New(&fakeChecker{complete: map[string]bool{}}, catalog)

	d, err := g.Check(context.Background(), id.NewTenantID(), mustResolve(t, catalog, "cynessa"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheck_RejectsBeforePrimaryComplete(t *testing.T) {
	catalog := agent.DefaultCatalog()
	g := New(&fakeChecker{complete: map[string]bool{}}, catalog)

	d, err := g.Check(context.Background(), id.NewTenantID(), mustResolve(t, catalog, "apex"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeOnboardingRequired, d.ErrorCode)
	// The payload names the agent the client should redirect to.
	assert.Equal(t, "cynessa", d.Agent)
}

func TestCheck_AllowsOncePrimaryComplete(t *testing.T) {
	catalog := agent.DefaultCatalog()
	g := New(&fakeChecker{primaryComplete: true, complete: map[string]bool{}}, catalog)

	// Apex has no onboarding of its own.
	d, err := g.Check(context.Background(), id.NewTenantID(), mustResolve(t, catalog, "apex"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheck_AgentOwnOnboardingRequired(t *testing.T) {
	catalog := agent.DefaultCatalog()
	checker := &fakeChecker{primaryComplete: true, complete: map[string]bool{}}
	g := New(checker, catalog)

	d, err := g.Check(context.Background(), id.NewTenantID(), mustResolve(t, catalog, "arsenal"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CodeAgentOnboardingRequired, d.ErrorCode)
	assert.Equal(t, "arsenal", d.Agent)

	checker.complete["arsenal"] = true
	d, err = g.Check(context.Background(), id.NewTenantID(), mustResolve(t, catalog, "arsenal"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMiddleware_RejectsBeforeHandler(t *testing.T) {
	catalog := agent.DefaultCatalog()
	checker := &fakeChecker{complete: map[string]bool{}}
	g := New(checker, catalog)

	tenantID := id.NewTenantID()
	handlerCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	mw := g.Middleware(func(r *http.Request) (id.TenantID, string, error) {
		return tenantID, r.Header.Get("X-Agent"), nil
	})

	serve := func(agentName string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Agent", agentName)
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		return rec
	}

	rec := serve("apex")
	assert.False(t, handlerCalled)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeOnboardingRequired, body["error"])
	assert.Equal(t, "cynessa", body["agent"])

	// Unknown agents never reach the handler either.
	rec = serve("nope")
	assert.False(t, handlerCalled)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Once the gate opens the request flows through.
	checker.primaryComplete = true
	rec = serve("apex")
	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteRejection_Payload(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRejection(rec, Decision{ErrorCode: CodeOnboardingRequired, Agent: "cynessa"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeOnboardingRequired, body["error"])
	assert.Equal(t, "cynessa", body["agent"])
}
