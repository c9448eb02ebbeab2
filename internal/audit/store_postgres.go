package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "cynergists/pkg/domain"
)

// PostgresStore persists audit entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	query := `
		INSERT INTO audit_entries (id, tenant_id, agent, event, actor_user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.TenantID),
		entry.Agent,
		string(entry.Event),
		uuid.UUID(entry.ActorUserID),
		metadata,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Entry, error) {
	query := `
		SELECT id, tenant_id, agent, event, actor_user_id, metadata, created_at
		FROM audit_entries
		WHERE tenant_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			entryID     uuid.UUID
			tenant      uuid.UUID
			actor       uuid.UUID
			event       string
			rawMetadata []byte
		)
		if err := rows.Scan(&entryID, &tenant, &entry.Agent, &event, &actor, &rawMetadata, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.AuditEntryID(entryID)
		entry.TenantID = id.TenantID(tenant)
		entry.ActorUserID = id.UserID(actor)
		entry.Event = Event(event)
		if len(rawMetadata) > 0 {
			if err := json.Unmarshal(rawMetadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
