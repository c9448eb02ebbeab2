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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cynergists/internal/agent"
	agentservice "cynergists/internal/agent/service"
	"cynergists/internal/conversation"
	"cynergists/internal/onboarding/gate"
	"cynergists/internal/platform/middleware"
	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
)

type fakeService struct {
	result  *agentservice.MessageResult
	err     error
	history []conversation.Message
}

func (f *fakeService) Message(_ context.Context, _ id.TenantID, _ string, _ id.UserID, _ string) (*agentservice.MessageResult, error) {
	return f.result, f.err
}

func (f *fakeService) History(_ context.Context, _ id.TenantID, agentName string) (string, []conversation.Message, error) {
	return agentName, f.history, f.err
}

func newTestHandler(svc Service) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(svc, agent.DefaultCatalog(), logger)
}

func doRequest(h *Handler, method, path string, body any, tenantID id.TenantID) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.Register(router)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(middleware.WithIdentity(req.Context(), id.NewUserID(), tenantID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessage_Success(t *testing.T) {
	h := newTestHandler(&fakeService{result: &agentservice.MessageResult{
		Agent: "cynessa",
		Reply: "Welcome aboard.",
	}})

	rec := doRequest(h, http.MethodPost, "/agents/cynessa/message",
		map[string]string{"message": "hi"}, id.NewTenantID())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "cynessa", resp.Agent)
	assert.Equal(t, "Welcome aboard.", resp.AssistantMessage)
}

func TestHandleMessage_GateRejection(t *testing.T) {
	h := newTestHandler(&fakeService{err: &agentservice.ErrGateRejected{
		Decision: gate.Decision{ErrorCode: gate.CodeOnboardingRequired, Agent: "cynessa"},
	}})

	rec := doRequest(h, http.MethodPost, "/agents/apex/message",
		map[string]string{"message": "hi"}, id.NewTenantID())

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "onboarding_required", body["error"])
	assert.Equal(t, "cynessa", body["agent"])
}

func TestHandleMessage_NoTenant(t *testing.T) {
	h := newTestHandler(&fakeService{})

	rec := doRequest(h, http.MethodPost, "/agents/apex/message",
		map[string]string{"message": "hi"}, id.TenantID{})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleMessage_EmptyBody(t *testing.T) {
	h := newTestHandler(&fakeService{})

	rec := doRequest(h, http.MethodPost, "/agents/apex/message",
		map[string]string{"message": "  "}, id.NewTenantID())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessage_ResponderUnavailable(t *testing.T) {
	h := newTestHandler(&fakeService{err: dErrors.New(dErrors.CodeUnavailable, "responder request failed")})

	rec := doRequest(h, http.MethodPost, "/agents/apex/message",
		map[string]string{"message": "hi"}, id.NewTenantID())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	h := newTestHandler(&fakeService{history: []conversation.Message{
		{Role: conversation.RoleUser, Content: "hi", CreatedAt: time.Now()},
		{Role: conversation.RoleAssistant, Content: "hello", CreatedAt: time.Now()},
	}})

	rec := doRequest(h, http.MethodGet, "/agents/apex/history", nil, id.NewTenantID())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
}

func TestHandleListAgents(t *testing.T) {
	h := newTestHandler(&fakeService{})

	rec := doRequest(h, http.MethodGet, "/agents", nil, id.NewTenantID())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Agents []AgentSummary `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Agents, 4)
}
