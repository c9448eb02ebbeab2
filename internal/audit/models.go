package audit

import (
	"time"

	id "cynergists/pkg/domain"
)

// Event names every action the portal records. Keep them stable; dashboards
// and compliance exports key off these strings.
type Event string

const (
	EventTenantCreated       Event = "tenant_created"
	EventAgentAttached       Event = "agent_attached"
	EventTenantSuspended     Event = "tenant_suspended"
	EventTenantReactivated   Event = "tenant_reactivated"
	EventOnboardingStarted   Event = "onboarding_started"
	EventOnboardingCompleted Event = "onboarding_completed"
	EventOnboardingReset     Event = "onboarding_reset"
)

// Entry is an append-only audit record. Entries are never mutated or deleted;
// repeated user attempts produce repeated entries on purpose.
type Entry struct {
	ID          id.AuditEntryID   `json:"id"`
	TenantID    id.TenantID       `json:"tenant_id"`
	Agent       string            `json:"agent,omitempty"`
	Event       Event             `json:"event"`
	ActorUserID id.UserID         `json:"actor_user_id"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}
