package testutil

import (
	"time"

	"github.com/google/uuid"

	tenantmodels "cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	UserID1   id.UserID
	UserID2   id.UserID
	TenantID1 id.TenantID
	TenantID2 id.TenantID
}{
	UserID1:   id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	UserID2:   id.UserID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	TenantID1: id.TenantID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	TenantID2: id.TenantID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
}

// TenantBuilder provides a fluent interface for building test tenants.
type TenantBuilder struct {
	tenant *tenantmodels.Tenant
}

// NewTenantBuilder creates a new TenantBuilder with sensible defaults.
func NewTenantBuilder() *TenantBuilder {
	now := time.Now()
	return &TenantBuilder{
		tenant: &tenantmodels.Tenant{
			ID:          id.TenantID(uuid.New()),
			OwnerUserID: TestIDs.UserID1,
			CompanyName: "Test Company",
			Subdomain:   "test-company",
			Status:      tenantmodels.TenantStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

func (b *TenantBuilder) WithID(tenantID id.TenantID) *TenantBuilder {
	b.tenant.ID = tenantID
	return b
}

func (b *TenantBuilder) WithOwner(ownerUserID id.UserID) *TenantBuilder {
	b.tenant.OwnerUserID = ownerUserID
	return b
}

func (b *TenantBuilder) WithCompanyName(name string) *TenantBuilder {
	b.tenant.CompanyName = name
	return b
}

func (b *TenantBuilder) WithSubdomain(subdomain string) *TenantBuilder {
	b.tenant.Subdomain = subdomain
	return b
}

func (b *TenantBuilder) Suspended() *TenantBuilder {
	b.tenant.Status = tenantmodels.TenantStatusSuspended
	return b
}

func (b *TenantBuilder) OnboardingCompleted(at time.Time) *TenantBuilder {
	b.tenant.OnboardingCompletedAt = &at
	return b
}

func (b *TenantBuilder) Build() *tenantmodels.Tenant {
	return b.tenant
}

// SubscriptionBuilder provides a fluent interface for building test subscriptions.
type SubscriptionBuilder struct {
	sub *tenantmodels.Subscription
}

// NewSubscriptionBuilder creates a new SubscriptionBuilder with sensible defaults.
func NewSubscriptionBuilder() *SubscriptionBuilder {
	return &SubscriptionBuilder{
		sub: &tenantmodels.Subscription{
			ID:        id.SubscriptionID(uuid.New()),
			TenantID:  TestIDs.TenantID1,
			AgentName: "apex",
			Plan:      "standard",
			Status:    tenantmodels.SubscriptionStatusActive,
			CreatedAt: time.Now(),
		},
	}
}

func (b *SubscriptionBuilder) WithTenantID(tenantID id.TenantID) *SubscriptionBuilder {
	b.sub.TenantID = tenantID
	return b
}

func (b *SubscriptionBuilder) WithAgent(agentName string) *SubscriptionBuilder {
	b.sub.AgentName = agentName
	return b
}

func (b *SubscriptionBuilder) WithPlan(plan string) *SubscriptionBuilder {
	b.sub.Plan = plan
	return b
}

func (b *SubscriptionBuilder) Canceled() *SubscriptionBuilder {
	b.sub.Status = tenantmodels.SubscriptionStatusCanceled
	return b
}

func (b *SubscriptionBuilder) Build() *tenantmodels.Subscription {
	return b.sub
}
