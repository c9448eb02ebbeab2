package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cynergists/internal/agent"
	agentservice "cynergists/internal/agent/service"
	"cynergists/internal/conversation"
	"cynergists/internal/onboarding/gate"
	"cynergists/internal/platform/middleware"
	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
	"cynergists/pkg/platform/httputil"
	"cynergists/pkg/platform/validation"
	"cynergists/pkg/requestcontext"
)

// Service is the message pipeline the handler fronts.
type Service interface {
	Message(ctx context.Context, tenantID id.TenantID, agentName string, userID id.UserID, text string) (*agentservice.MessageResult, error)
	History(ctx context.Context, tenantID id.TenantID, agentName string) (string, []conversation.Message, error)
}

type Handler struct {
	service Service
	catalog *agent.Catalog
	logger  *slog.Logger
	gateMW  func(http.Handler) http.Handler
}

type Option func(h *Handler)

// WithGate guards the history route with the onboarding gate so a blocked
// agent's conversation cannot be read before the gate opens. The message
// route stays ungated here; the pipeline runs the same check itself.
func WithGate(g *gate.Gate) Option {
	return func(h *Handler) {
		h.gateMW = g.Middleware(func(r *http.Request) (id.TenantID, string, error) {
			tenantID := middleware.GetTenantID(r.Context())
			if tenantID.IsNil() {
				return id.TenantID{}, "", dErrors.New(dErrors.CodeForbidden, "no tenant associated with this account")
			}
			return tenantID, chi.URLParam(r, "agent"), nil
		})
	}
}

func New(service Service, catalog *agent.Catalog, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, catalog: catalog, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/agents", h.HandleListAgents)
	r.Post("/agents/{agent}/message", h.HandleMessage)
	if h.gateMW != nil {
		r.With(h.gateMW).Get("/agents/{agent}/history", h.HandleHistory)
	} else {
		r.Get("/agents/{agent}/history", h.HandleHistory)
	}
}

type MessageRequest struct {
	Message string `json:"message"`
}

func (r *MessageRequest) Normalize() {
	if r == nil {
		return
	}
	r.Message = strings.TrimSpace(r.Message)
}

func (r *MessageRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Message == "" {
		return dErrors.New(dErrors.CodeValidation, "message is required")
	}
	return validation.CheckStringLength("message", r.Message, validation.MaxMessageLength)
}

type MessageResponse struct {
	Success             bool   `json:"success"`
	Agent               string `json:"agent"`
	AssistantMessage    string `json:"assistantMessage"`
	OnboardingCompleted bool   `json:"onboarding_completed,omitempty"`
}

type AgentSummary struct {
	Name               string `json:"name"`
	Tagline            string `json:"tagline"`
	Primary            bool   `json:"primary"`
	RequiresOnboarding bool   `json:"requires_onboarding"`
}

type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Agent    string           `json:"agent"`
	Messages []HistoryMessage `json:"messages"`
}

// HandleListAgents returns the persona catalog.
func (h *Handler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.catalog.All()
	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentSummary{
			Name:               a.Name,
			Tagline:            a.Tagline,
			Primary:            a.Primary,
			RequiresOnboarding: a.RequiresOnboarding,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"agents": out})
}

// HandleMessage routes one user message through the gate and the pipeline.
// Gate rejections come back as 403 with a machine-readable error code.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	agentName := chi.URLParam(r, "agent")

	tenantID, ok := h.requireTenant(w, ctx)
	if !ok {
		return
	}

	req, decoded := httputil.DecodeAndPrepare[MessageRequest](w, r, h.logger, ctx, requestID)
	if !decoded {
		return
	}

	result, err := h.service.Message(ctx, tenantID, agentName, middleware.GetUserID(ctx), req.Message)
	if err != nil {
		var rejected *agentservice.ErrGateRejected
		if errors.As(err, &rejected) {
			gate.WriteRejection(w, rejected.Decision)
			return
		}
		h.logger.ErrorContext(ctx, "agent message failed",
			"error", err,
			"request_id", requestID,
			"agent", agentName,
			"tenant_id", tenantID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &MessageResponse{
		Success:             true,
		Agent:               result.Agent,
		AssistantMessage:    result.Reply,
		OnboardingCompleted: result.OnboardingCompleted,
	})
}

// HandleHistory returns the stored conversation for the caller's tenant.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	agentName := chi.URLParam(r, "agent")

	tenantID, ok := h.requireTenant(w, ctx)
	if !ok {
		return
	}

	canonical, history, err := h.service.History(ctx, tenantID, agentName)
	if err != nil {
		h.logger.ErrorContext(ctx, "history load failed",
			"error", err,
			"request_id", requestID,
			"agent", agentName,
		)
		httputil.WriteError(w, err)
		return
	}

	msgs := make([]HistoryMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, HistoryMessage{Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}
	httputil.WriteJSON(w, http.StatusOK, &HistoryResponse{Agent: canonical, Messages: msgs})
}

func (h *Handler) requireTenant(w http.ResponseWriter, ctx context.Context) (id.TenantID, bool) {
	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "no tenant associated with this account"))
		return id.TenantID{}, false
	}
	return tenantID, true
}
