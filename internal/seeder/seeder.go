// Package seeder populates the in-memory stores with demo portal data for
// local development.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cynergists/internal/conversation"
	onboardingmodels "cynergists/internal/onboarding/models"
	tenantmodels "cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
)

// TenantService defines the tenant operations the seeder needs.
type TenantService interface {
	CreateTenant(ctx context.Context, ownerUserID id.UserID, companyName, subdomain string) (*tenantmodels.Tenant, error)
	AttachAgent(ctx context.Context, ownerUserID id.UserID, companyName, agentName, plan string) (*tenantmodels.Tenant, *tenantmodels.Subscription, error)
	UpdateSetting(ctx context.Context, tenantID id.TenantID, key, value string) (*tenantmodels.Tenant, error)
}

// OnboardingService defines the onboarding operations the seeder needs.
type OnboardingService interface {
	MarkStarted(ctx context.Context, tenantID id.TenantID, agentName string, actor id.UserID) (*onboardingmodels.OnboardingState, error)
	MarkCompleted(ctx context.Context, tenantID id.TenantID, agentName string, actor id.UserID) (*onboardingmodels.OnboardingState, error)
}

// Seeder populates stores with demo data.
type Seeder struct {
	tenants       TenantService
	onboarding    OnboardingService
	conversations conversation.Store
	logger        *slog.Logger
}

func New(tenants TenantService, onboarding OnboardingService, conversations conversation.Store, logger *slog.Logger) *Seeder {
	return &Seeder{
		tenants:       tenants,
		onboarding:    onboarding,
		conversations: conversations,
		logger:        logger,
	}
}

// SeedAll creates demo tenants in varying onboarding stages along with sample
// conversation history.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	demoTenants := []struct {
		company   string
		subdomain string
		industry  string
		// progress through primary onboarding: "none", "started", "completed"
		progress string
		agents   []string
	}{
		{"Bright Smile Dental", "brightsmile", "dental", "completed", []string{"apex", "arsenal"}},
		{"Peak Fitness Co", "peakfitness", "fitness", "started", nil},
		{"Harbor Legal Group", "harborlegal", "legal", "none", nil},
		{"Cedar Creek Roofing", "cedarcreek", "roofing", "completed", []string{"apex"}},
	}

	seeded := 0
	for _, d := range demoTenants {
		owner := id.NewUserID()
		tenant, err := s.tenants.CreateTenant(ctx, owner, d.company, d.subdomain)
		if err != nil {
			return fmt.Errorf("seed tenant %s: %w", d.subdomain, err)
		}
		if _, err := s.tenants.UpdateSetting(ctx, tenant.ID, "industry", d.industry); err != nil {
			return fmt.Errorf("seed settings for %s: %w", d.subdomain, err)
		}

		switch d.progress {
		case "started":
			if _, err := s.onboarding.MarkStarted(ctx, tenant.ID, "cynessa", owner); err != nil {
				return fmt.Errorf("seed onboarding start for %s: %w", d.subdomain, err)
			}
			if err := s.seedConversation(ctx, tenant.ID, false); err != nil {
				return err
			}
		case "completed":
			if _, err := s.onboarding.MarkStarted(ctx, tenant.ID, "cynessa", owner); err != nil {
				return fmt.Errorf("seed onboarding start for %s: %w", d.subdomain, err)
			}
			if _, err := s.onboarding.MarkCompleted(ctx, tenant.ID, "cynessa", owner); err != nil {
				return fmt.Errorf("seed onboarding completion for %s: %w", d.subdomain, err)
			}
			if err := s.seedConversation(ctx, tenant.ID, true); err != nil {
				return err
			}
		}

		for _, agentName := range d.agents {
			if _, _, err := s.tenants.AttachAgent(ctx, owner, d.company, agentName, "standard"); err != nil {
				return fmt.Errorf("seed subscription %s/%s: %w", d.subdomain, agentName, err)
			}
		}

		seeded++
	}

	s.logger.Info("demo data seeded successfully", "tenants", seeded)
	return nil
}

func (s *Seeder) seedConversation(ctx context.Context, tenantID id.TenantID, completed bool) error {
	now := time.Now()
	messages := []conversation.Message{
		{Role: conversation.RoleUser, Content: "Hi, I'd like to get set up.", CreatedAt: now.Add(-30 * time.Minute)},
		{Role: conversation.RoleAssistant, Content: "Welcome! Let's start with your business. What do you do?", CreatedAt: now.Add(-29 * time.Minute)},
		{Role: conversation.RoleUser, Content: "We run a local service business and want help with marketing.", CreatedAt: now.Add(-28 * time.Minute)},
	}
	if completed {
		messages = append(messages,
			conversation.Message{Role: conversation.RoleAssistant, Content: "Great, I have everything I need. You're all set!", CreatedAt: now.Add(-27 * time.Minute)},
		)
	}

	if err := s.conversations.Append(ctx, tenantID, "cynessa", messages...); err != nil {
		return fmt.Errorf("seed conversation: %w", err)
	}
	return nil
}
