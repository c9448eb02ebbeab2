package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cynergists/internal/platform/middleware"
	"cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
	"cynergists/pkg/platform/httputil"
	"cynergists/pkg/requestcontext"
)

// Service defines the interface for tenant operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateTenant(ctx context.Context, ownerUserID id.UserID, companyName, subdomain string) (*models.Tenant, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindByOwner(ctx context.Context, ownerUserID id.UserID) (*models.Tenant, error)
	AttachAgent(ctx context.Context, ownerUserID id.UserID, companyName, agentName, plan string) (*models.Tenant, *models.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts user-facing tenant routes. Callers must already be
// authenticated; routes resolve the tenant from the bearer identity.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me/tenant", h.HandleGetMyTenant)
	r.Post("/me/tenant", h.HandleCreateMyTenant)
	r.Post("/me/agents", h.HandleAttachAgent)
}

// HandleGetMyTenant returns the caller's tenant with its subscriptions.
func (h *Handler) HandleGetMyTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenant, err := h.service.FindByOwner(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "get my tenant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	subs, err := h.service.ListSubscriptions(ctx, tenant.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list subscriptions failed", "error", err, "request_id", requestID, "tenant_id", tenant.ID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTenantWithSubscriptionsResponse(tenant, subs))
}

// HandleCreateMyTenant creates a tenant owned by the caller.
func (h *Handler) HandleCreateMyTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tenant, err := h.service.CreateTenant(ctx, middleware.GetUserID(ctx), req.CompanyName, req.Subdomain)
	if err != nil {
		h.logger.ErrorContext(ctx, "create tenant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &TenantCreateResponse{
		TenantID: tenant.ID.String(),
		Tenant:   toTenantResponse(tenant),
	})
}

// HandleAttachAgent grants the caller's tenant access to an agent persona,
// creating the tenant first when this is their first agent.
func (h *Handler) HandleAttachAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AttachAgentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tenant, sub, err := h.service.AttachAgent(ctx, middleware.GetUserID(ctx), req.CompanyName, req.Agent, req.Plan)
	if err != nil {
		h.logger.ErrorContext(ctx, "attach agent failed", "error", err, "request_id", requestID, "agent", req.Agent)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &AttachAgentResponse{
		Tenant:       toTenantResponse(tenant),
		Subscription: toSubscriptionResponse(sub),
	})
}
