package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cynergists/internal/onboarding/models"
	"cynergists/internal/platform/middleware"
	tenantmodels "cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
	"cynergists/pkg/platform/httputil"
	"cynergists/pkg/requestcontext"
)

// Handler exposes the internal CRM endpoints. All routes sit behind the
// X-Admin-Token middleware; the acting admin travels in X-Admin-Actor-ID.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func New(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/stats", h.HandleStats)
	r.Post("/admin/tenants", h.HandleCreateTenant)
	r.Get("/admin/tenants/{id}", h.HandleTenantDetails)
	r.Post("/admin/tenants/{id}/suspend", h.HandleSuspendTenant)
	r.Post("/admin/tenants/{id}/reactivate", h.HandleReactivateTenant)
	r.Get("/admin/tenants/{id}/audit", h.HandleAuditEntries)
	r.Post("/admin/tenants/{id}/agents/{agent}/onboarding/reset", h.HandleResetOnboarding)
	r.Post("/admin/tenants/{id}/agents/{agent}/onboarding/complete", h.HandleCompleteOnboarding)
}

type CreateTenantRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	CompanyName string `json:"company_name"`
	Subdomain   string `json:"subdomain,omitempty"`
}

func (r *CreateTenantRequest) Normalize() {
	if r == nil {
		return
	}
	r.OwnerUserID = strings.TrimSpace(r.OwnerUserID)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
}

func (r *CreateTenantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.OwnerUserID == "" {
		return dErrors.New(dErrors.CodeValidation, "owner_user_id is required")
	}
	if r.CompanyName == "" {
		return dErrors.New(dErrors.CodeValidation, "company_name is required")
	}
	return nil
}

type TenantDetailsResponse struct {
	ID                    string            `json:"id"`
	CompanyName           string            `json:"company_name"`
	Subdomain             string            `json:"subdomain"`
	Status                string            `json:"status"`
	OnboardingCompletedAt *time.Time        `json:"onboarding_completed_at,omitempty"`
	SubscriptionCount     int               `json:"subscription_count"`
	Subscriptions         []string          `json:"subscriptions"`
	OnboardingStates      map[string]string `json:"onboarding_states"`
	CreatedAt             time.Time         `json:"created_at"`
}

type ResetOnboardingResponse struct {
	Success  bool   `json:"success"`
	TenantID string `json:"tenant_id"`
	Agent    string `json:"agent"`
	State    string `json:"state"`
}

// HandleStats returns dashboard statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin stats failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleCreateTenant creates a tenant on behalf of an owner user.
func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ownerID, err := id.ParseUserID(req.OwnerUserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid owner_user_id"))
		return
	}

	tenant, err := h.service.tenants.CreateTenant(ctx, ownerID, req.CompanyName, req.Subdomain)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin create tenant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"tenant_id": tenant.ID.String(),
		"subdomain": tenant.Subdomain,
		"status":    string(tenant.Status),
	})
}

// HandleTenantDetails returns tenant metadata with subscriptions and the
// full onboarding table.
func (h *Handler) HandleTenantDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.parseTenantID(w, r)
	if !ok {
		return
	}

	details, err := h.service.TenantDetails(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin tenant details failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTenantDetailsResponse(details))
}

// HandleSuspendTenant suspends a tenant.
func (h *Handler) HandleSuspendTenant(w http.ResponseWriter, r *http.Request) {
	h.transitionTenant(w, r, h.service.tenants.SuspendTenant)
}

// HandleReactivateTenant reactivates a tenant.
func (h *Handler) HandleReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.transitionTenant(w, r, h.service.tenants.ReactivateTenant)
}

// HandleResetOnboarding forces a pair back to not_started. Resetting the
// primary agent also clears the tenant's legacy completion flag.
func (h *Handler) HandleResetOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.parseTenantID(w, r)
	if !ok {
		return
	}
	agentName := chi.URLParam(r, "agent")

	canonical, err := h.service.ResetOnboarding(ctx, tenantID, agentName, h.actor(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "admin onboarding reset failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "tenant_id", tenantID, "agent", agentName)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &ResetOnboardingResponse{
		Success:  true,
		TenantID: tenantID.String(),
		Agent:    canonical,
		State:    string(models.StateNotStarted),
	})
}

// HandleCompleteOnboarding marks a pair completed on behalf of an admin.
func (h *Handler) HandleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.parseTenantID(w, r)
	if !ok {
		return
	}
	agentName := chi.URLParam(r, "agent")

	state, err := h.service.CompleteOnboarding(ctx, tenantID, agentName, h.actor(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "admin onboarding complete failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "tenant_id", tenantID, "agent", agentName)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tenant_id": tenantID.String(),
		"agent":     state.AgentName,
		"state":     string(state.State),
	})
}

// HandleAuditEntries lists a tenant's audit trail, newest-last.
func (h *Handler) HandleAuditEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.parseTenantID(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.service.AuditEntries(ctx, tenantID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin audit list failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *Handler) transitionTenant(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)) {
	ctx := r.Context()
	tenantID, ok := h.parseTenantID(w, r)
	if !ok {
		return
	}

	tenant, err := fn(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin tenant transition failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenant.ID.String(),
		"status":    string(tenant.Status),
	})
}

func (h *Handler) parseTenantID(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return id.TenantID{}, false
	}
	return tenantID, true
}

// actor parses the acting admin from the X-Admin-Actor-ID header captured by
// the admin middleware. A missing or malformed header yields the zero user.
func (h *Handler) actor(r *http.Request) id.UserID {
	raw := middleware.GetAdminActorID(r.Context())
	if raw == "" {
		return id.UserID{}
	}
	actor, err := id.ParseUserID(raw)
	if err != nil {
		return id.UserID{}
	}
	return actor
}

func toTenantDetailsResponse(details *tenantmodels.TenantDetails) *TenantDetailsResponse {
	subs := make([]string, 0, len(details.Subscriptions))
	for _, s := range details.Subscriptions {
		subs = append(subs, s.AgentName)
	}
	return &TenantDetailsResponse{
		ID:                    details.Tenant.ID.String(),
		CompanyName:           details.Tenant.CompanyName,
		Subdomain:             details.Tenant.Subdomain,
		Status:                string(details.Tenant.Status),
		OnboardingCompletedAt: details.Tenant.OnboardingCompletedAt,
		SubscriptionCount:     details.SubscriptionCount,
		Subscriptions:         subs,
		OnboardingStates:      details.OnboardingStates,
		CreatedAt:             details.Tenant.CreatedAt,
	}
}
