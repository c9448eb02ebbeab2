package models

import (
	"regexp"
	"strings"
	"time"

	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

var validSubdomain = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// Tenant represents a client organization using the portal. Tenants are never
// hard-deleted; lifecycle is soft via Status.
type Tenant struct {
	ID          id.TenantID  `json:"id"`
	OwnerUserID id.UserID    `json:"owner_user_id"`
	CompanyName string       `json:"company_name"`
	Subdomain   string       `json:"subdomain"`
	Status      TenantStatus `json:"status"`

	// OnboardingCompletedAt is the legacy completion flag for the primary
	// onboarding agent. It predates the per-agent state tracker; read paths
	// must honor both signals until all tenants are backfilled.
	OnboardingCompletedAt *time.Time `json:"onboarding_completed_at,omitempty"`

	Settings  map[string]string `json:"settings,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewTenant(tenantID id.TenantID, ownerUserID id.UserID, companyName, subdomain string, now time.Time) (*Tenant, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name cannot be empty")
	}
	if len(companyName) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "company name must be 128 characters or less")
	}
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if !validSubdomain.MatchString(subdomain) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subdomain must be 3-63 lowercase alphanumeric characters or hyphens")
	}
	if ownerUserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner user ID is required")
	}
	return &Tenant{
		ID:          tenantID,
		OwnerUserID: ownerUserID,
		CompanyName: companyName,
		Subdomain:   subdomain,
		Status:      TenantStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

func (t *Tenant) IsSuspended() bool {
	return t.Status == TenantStatusSuspended
}

// Suspend transitions the tenant to suspended status.
// Returns an error if the tenant is already suspended.
func (t *Tenant) Suspend(now time.Time) error {
	if !t.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.UpdatedAt = now
	return nil
}

// Reactivate transitions the tenant to active status.
// Returns an error if the tenant is already active.
func (t *Tenant) Reactivate(now time.Time) error {
	if t.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	t.Status = TenantStatusActive
	t.UpdatedAt = now
	return nil
}

// SetSetting writes one key into the tenant's settings blob.
func (t *Tenant) SetSetting(key, value string, now time.Time) {
	if t.Settings == nil {
		t.Settings = make(map[string]string, 1)
	}
	t.Settings[key] = value
	t.UpdatedAt = now
}

// MarkLegacyOnboardingComplete stamps the legacy primary-agent flag.
// Idempotent: an existing stamp is never overwritten.
func (t *Tenant) MarkLegacyOnboardingComplete(now time.Time) {
	if t.OnboardingCompletedAt != nil {
		return
	}
	t.OnboardingCompletedAt = &now
	t.UpdatedAt = now
}

// ClearLegacyOnboardingComplete removes the legacy primary-agent flag.
func (t *Tenant) ClearLegacyOnboardingComplete(now time.Time) {
	t.OnboardingCompletedAt = nil
	t.UpdatedAt = now
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription grants a tenant access to one agent persona.
type Subscription struct {
	ID        id.SubscriptionID  `json:"id"`
	TenantID  id.TenantID        `json:"tenant_id"`
	AgentName string             `json:"agent_name"`
	Plan      string             `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

func NewSubscription(subID id.SubscriptionID, tenantID id.TenantID, agentName, plan string, now time.Time) (*Subscription, error) {
	agentName = strings.ToLower(strings.TrimSpace(agentName))
	if agentName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent name cannot be empty")
	}
	if plan == "" {
		plan = "standard"
	}
	return &Subscription{
		ID:        subID,
		TenantID:  tenantID,
		AgentName: agentName,
		Plan:      plan,
		Status:    SubscriptionStatusActive,
		CreatedAt: now,
	}, nil
}

// TenantDetails aggregates tenant metadata with onboarding progress for the
// admin dashboard. Internal type - converted to a response DTO for HTTP.
type TenantDetails struct {
	Tenant            *Tenant
	Subscriptions     []*Subscription
	OnboardingStates  map[string]string
	SubscriptionCount int
}
