package audit

import (
	"context"

	id "cynergists/pkg/domain"
)

// Store persists audit entries. Append-only: implementations must not expose
// update or delete operations.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Entry, error)
}
