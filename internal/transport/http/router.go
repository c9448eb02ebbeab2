package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "cynergists/internal/admin"
	agenthandler "cynergists/internal/agent/handler"
	"cynergists/internal/platform/health"
	"cynergists/internal/platform/middleware"
	tenanthandler "cynergists/internal/tenant/handler"
)

// Config carries the secrets the router's auth middleware needs.
type Config struct {
	AdminToken    string
	JWTSigningKey string
}

// Handlers are the domain handlers the router mounts.
type Handlers struct {
	Tenant *tenanthandler.Handler
	Agent  *agenthandler.Handler
	Admin  *adminhandler.Handler
	Health *health.Handler
}

// NewRouter wires the middleware stack and mounts all endpoints. User routes
// require a portal bearer token; admin routes require the shared admin token.
func NewRouter(cfg Config, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Timeout(2 * time.Minute))

	if h.Health != nil {
		h.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(cfg.JWTSigningKey, logger))
		if h.Tenant != nil {
			h.Tenant.Register(r)
		}
		if h.Agent != nil {
			h.Agent.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAdminToken(cfg.AdminToken, logger))
		if h.Admin != nil {
			h.Admin.Register(r)
		}
	})

	return r
}
