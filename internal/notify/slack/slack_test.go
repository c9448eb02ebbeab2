package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cynergists/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnboardingCompleted_PostsPayload(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, discardLogger())
	tenantID := id.NewTenantID()
	n.OnboardingCompleted(context.Background(), tenantID, "cynessa")

	require.NotNil(t, received)
	assert.True(t, strings.Contains(received["text"], "cynessa"))
	assert.True(t, strings.Contains(received["text"], tenantID.String()))
}

func TestPost_SwallowsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, discardLogger())
	// Must not panic or surface the failure.
	n.TenantCreated(context.Background(), id.NewTenantID(), "Acme")
}

func TestPost_DisabledWithoutWebhook(t *testing.T) {
	n := New("", discardLogger())
	n.OnboardingCompleted(context.Background(), id.NewTenantID(), "cynessa")
}
