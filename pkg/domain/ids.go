// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "cynergists/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where TenantID is expected.
type (
	TenantID       uuid.UUID
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	AuditEntryID   uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseSubscriptionID(s string) (SubscriptionID, error) {
	id, err := parseUUID(s, "subscription ID")
	return SubscriptionID(id), err
}

// String methods - for logging and debugging.

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string   { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewTenantID returns a freshly generated tenant identifier.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewUserID returns a freshly generated user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewSubscriptionID returns a freshly generated subscription identifier.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

// NewAuditEntryID returns a freshly generated audit entry identifier.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
