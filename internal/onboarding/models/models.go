package models

import (
	"time"

	id "cynergists/pkg/domain"
)

// State is an onboarding progress value for one (tenant, agent) pair.
// NotStarted is the implicit default: a pair with no stored row is not
// started, and reads must treat absence as this value rather than an error.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// OnboardingState is one tracked row. Rows are created lazily on first
// write; reset deletes the row instead of transitioning it back.
type OnboardingState struct {
	TenantID  id.TenantID `json:"tenant_id"`
	AgentName string      `json:"agent_name"`
	State     State       `json:"state"`

	// StartedAt is stamped once on the first transition into in_progress
	// and never overwritten by repeated start signals.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is stamped on every transition into completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState materializes a fresh not_started row for a pair.
func NewState(tenantID id.TenantID, agentName string, now time.Time) *OnboardingState {
	return &OnboardingState{
		TenantID:  tenantID,
		AgentName: agentName,
		State:     StateNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsComplete reports whether this pair finished onboarding.
func (s *OnboardingState) IsComplete() bool {
	return s != nil && s.State == StateCompleted
}

// Start transitions not_started to in_progress. Repeated calls are no-ops
// with respect to StartedAt; the caller still audits every invocation.
// Returns true when the state actually changed.
func (s *OnboardingState) Start(now time.Time) bool {
	if s.State != StateNotStarted {
		return false
	}
	s.State = StateInProgress
	s.StartedAt = &now
	s.UpdatedAt = now
	return true
}

// Complete unconditionally transitions to completed and stamps CompletedAt.
// Valid from any prior state; completing without a prior start is the
// one-step create+complete path used by backend automations.
func (s *OnboardingState) Complete(now time.Time) {
	s.State = StateCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
}
