package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cynergists/internal/onboarding/models"
	"cynergists/internal/sentinel"
	id "cynergists/pkg/domain"
	"cynergists/pkg/platform/tx"
)

// PostgresStore persists onboarding rows in PostgreSQL. One row per
// (tenant_id, agent_name) enforced by the primary key; absence of a row
// means not_started.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed onboarding state store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Find retrieves the row for a pair, or ErrNotFound when none exists.
func (s *PostgresStore) Find(ctx context.Context, tenantID id.TenantID, agentName string) (*models.OnboardingState, error) {
	query := `
		SELECT tenant_id, agent_name, state, started_at, completed_at, created_at, updated_at
		FROM onboarding_states
		WHERE tenant_id = $1 AND agent_name = $2
	`
	row := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), strings.ToLower(agentName))
	return scanState(row)
}

// Save upserts the row for a pair.
func (s *PostgresStore) Save(ctx context.Context, state *models.OnboardingState) error {
	query := `
		INSERT INTO onboarding_states (tenant_id, agent_name, state, started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, agent_name) DO UPDATE
		SET state = EXCLUDED.state,
		    started_at = EXCLUDED.started_at,
		    completed_at = EXCLUDED.completed_at,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(state.TenantID),
		strings.ToLower(state.AgentName),
		string(state.State),
		state.StartedAt,
		state.CompletedAt,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save onboarding state: %w", err)
	}
	return nil
}

// Delete removes the row for a pair. Absent rows are not an error.
func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, agentName string) error {
	query := `DELETE FROM onboarding_states WHERE tenant_id = $1 AND agent_name = $2`
	if _, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query, uuid.UUID(tenantID), strings.ToLower(agentName)); err != nil {
		return fmt.Errorf("delete onboarding state: %w", err)
	}
	return nil
}

// ListByTenant returns every tracked row for a tenant.
func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.OnboardingState, error) {
	query := `
		SELECT tenant_id, agent_name, state, started_at, completed_at, created_at, updated_at
		FROM onboarding_states
		WHERE tenant_id = $1
	`
	rows, err := tx.QuerierFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list onboarding states: %w", err)
	}
	defer rows.Close()

	var out []*models.OnboardingState
	for rows.Next() {
		state, err := scanStateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row *sql.Row) (*models.OnboardingState, error) {
	state, err := scanFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return state, nil
}

func scanStateRows(rows *sql.Rows) (*models.OnboardingState, error) {
	return scanFrom(rows)
}

func scanFrom(sc rowScanner) (*models.OnboardingState, error) {
	var (
		state       models.OnboardingState
		tenantID    uuid.UUID
		stateVal    string
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := sc.Scan(&tenantID, &state.AgentName, &stateVal, &startedAt, &completedAt, &state.CreatedAt, &state.UpdatedAt); err != nil {
		return nil, err
	}
	state.TenantID = id.TenantID(tenantID)
	state.State = models.State(stateVal)
	if startedAt.Valid {
		t := startedAt.Time
		state.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		state.CompletedAt = &t
	}
	return &state, nil
}
