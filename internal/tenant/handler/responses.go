package handler

import (
	"time"

	"cynergists/internal/tenant/models"
)

type TenantResponse struct {
	ID                    string              `json:"id"`
	CompanyName           string              `json:"company_name"`
	Subdomain             string              `json:"subdomain"`
	Status                models.TenantStatus `json:"status"`
	OnboardingCompletedAt *time.Time          `json:"onboarding_completed_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

type TenantCreateResponse struct {
	TenantID string          `json:"tenant_id"`
	Tenant   *TenantResponse `json:"tenant"`
}

type SubscriptionResponse struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type TenantWithSubscriptionsResponse struct {
	Tenant        *TenantResponse         `json:"tenant"`
	Subscriptions []*SubscriptionResponse `json:"subscriptions"`
}

type AttachAgentResponse struct {
	Tenant       *TenantResponse       `json:"tenant"`
	Subscription *SubscriptionResponse `json:"subscription"`
}

// Response mapping functions - convert domain objects to HTTP DTOs

func toTenantResponse(t *models.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:                    t.ID.String(),
		CompanyName:           t.CompanyName,
		Subdomain:             t.Subdomain,
		Status:                t.Status,
		OnboardingCompletedAt: t.OnboardingCompletedAt,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

func toSubscriptionResponse(s *models.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:        s.ID.String(),
		Agent:     s.AgentName,
		Plan:      s.Plan,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

func toTenantWithSubscriptionsResponse(t *models.Tenant, subs []*models.Subscription) *TenantWithSubscriptionsResponse {
	out := make([]*SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionResponse(s))
	}
	return &TenantWithSubscriptionsResponse{
		Tenant:        toTenantResponse(t),
		Subscriptions: out,
	}
}
