package adapters

import (
	"context"

	tenantservice "cynergists/internal/tenant/service"
	id "cynergists/pkg/domain"
)

// TenantAdapter bridges the onboarding service to the tenant service's
// legacy completion flag without a package cycle.
type TenantAdapter struct {
	tenants *tenantservice.Service
}

func NewTenantAdapter(tenants *tenantservice.Service) *TenantAdapter {
	return &TenantAdapter{tenants: tenants}
}

func (a *TenantAdapter) LegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) (bool, error) {
	return a.tenants.LegacyOnboardingComplete(ctx, tenantID)
}

func (a *TenantAdapter) MarkLegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) error {
	return a.tenants.MarkLegacyOnboardingComplete(ctx, tenantID)
}

func (a *TenantAdapter) ClearLegacyOnboardingComplete(ctx context.Context, tenantID id.TenantID) error {
	return a.tenants.ClearLegacyOnboardingComplete(ctx, tenantID)
}
