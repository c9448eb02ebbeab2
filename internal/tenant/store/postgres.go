package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"cynergists/internal/sentinel"
	"cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
	"cynergists/pkg/platform/tx"
)

// PostgresTenantStore persists tenants in PostgreSQL. All methods join an
// in-flight transaction when one is carried in the context.
type PostgresTenantStore struct {
	db *sql.DB
}

// NewPostgresTenantStore constructs a PostgreSQL-backed tenant store.
func NewPostgresTenantStore(db *sql.DB) *PostgresTenantStore {
	return &PostgresTenantStore{db: db}
}

// CreateIfSubdomainAvailable atomically creates the tenant if the subdomain is
// not already taken (unique index, case-insensitive).
func (s *PostgresTenantStore) CreateIfSubdomainAvailable(ctx context.Context, tenant *models.Tenant) error {
	if tenant == nil {
		return fmt.Errorf("tenant is required")
	}
	settings, err := settingsJSON(tenant.Settings)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	query := `
		INSERT INTO tenants (id, owner_user_id, company_name, subdomain, status, onboarding_completed_at, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(tenant.ID),
		uuid.UUID(tenant.OwnerUserID),
		tenant.CompanyName,
		tenant.Subdomain,
		string(tenant.Status),
		tenant.OnboardingCompletedAt,
		settings,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subdomain must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// Update updates an existing tenant.
func (s *PostgresTenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	if tenant == nil {
		return fmt.Errorf("tenant is required")
	}
	settings, err := settingsJSON(tenant.Settings)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	query := `
		UPDATE tenants
		SET company_name = $2, subdomain = $3, status = $4, onboarding_completed_at = $5, settings = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(tenant.ID),
		tenant.CompanyName,
		tenant.Subdomain,
		string(tenant.Status),
		tenant.OnboardingCompletedAt,
		settings,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *PostgresTenantStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := selectTenant + ` WHERE id = $1`
	return s.scanOne(tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID)), "find tenant by id")
}

// FindBySubdomain retrieves a tenant by subdomain (case-insensitive).
func (s *PostgresTenantStore) FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := selectTenant + ` WHERE lower(subdomain) = lower($1)`
	return s.scanOne(tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, subdomain), "find tenant by subdomain")
}

// FindByOwner retrieves the tenant owned by the given user.
func (s *PostgresTenantStore) FindByOwner(ctx context.Context, ownerUserID id.UserID) (*models.Tenant, error) {
	query := selectTenant + ` WHERE owner_user_id = $1`
	return s.scanOne(tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(ownerUserID)), "find tenant by owner")
}

// Count returns the total number of tenants.
func (s *PostgresTenantStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return count, nil
}

const selectTenant = `
	SELECT id, owner_user_id, company_name, subdomain, status, onboarding_completed_at, settings, created_at, updated_at
	FROM tenants
`

func (s *PostgresTenantStore) scanOne(row *sql.Row, op string) (*models.Tenant, error) {
	var (
		tenant      models.Tenant
		tenantID    uuid.UUID
		ownerID     uuid.UUID
		status      string
		completedAt sql.NullTime
		settings    []byte
	)
	err := row.Scan(&tenantID, &ownerID, &tenant.CompanyName, &tenant.Subdomain, &status, &completedAt, &settings, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tenant.ID = id.TenantID(tenantID)
	tenant.OwnerUserID = id.UserID(ownerID)
	tenant.Status = models.TenantStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		tenant.OnboardingCompletedAt = &t
	}
	if len(settings) > 0 {
		var m map[string]string
		if err := json.Unmarshal(settings, &m); err != nil {
			return nil, fmt.Errorf("%s: decode settings: %w", op, err)
		}
		if len(m) > 0 {
			tenant.Settings = m
		}
	}
	return &tenant, nil
}

// settingsJSON renders the settings blob for the JSONB column. An empty map
// is stored as '{}' so the column stays NOT NULL.
func settingsJSON(settings map[string]string) ([]byte, error) {
	if len(settings) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(settings)
}

// PostgresSubscriptionStore persists subscriptions in PostgreSQL.
type PostgresSubscriptionStore struct {
	db *sql.DB
}

// NewPostgresSubscriptionStore constructs a PostgreSQL-backed subscription store.
func NewPostgresSubscriptionStore(db *sql.DB) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db}
}

// Create inserts a subscription. One active subscription per (tenant, agent)
// is enforced by a partial unique index.
func (s *PostgresSubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription is required")
	}
	query := `
		INSERT INTO subscriptions (id, tenant_id, agent_name, plan, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		uuid.UUID(sub.TenantID),
		sub.AgentName,
		sub.Plan,
		string(sub.Status),
		sub.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("agent already subscribed: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// ListByTenant returns all subscriptions for a tenant.
func (s *PostgresSubscriptionStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	query := `
		SELECT id, tenant_id, agent_name, plan, status, created_at
		FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at
	`
	rows, err := tx.QuerierFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		var (
			sub       models.Subscription
			subID     uuid.UUID
			tenant    uuid.UUID
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(&subID, &tenant, &sub.AgentName, &sub.Plan, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.ID = id.SubscriptionID(subID)
		sub.TenantID = id.TenantID(tenant)
		sub.Status = models.SubscriptionStatus(status)
		sub.CreatedAt = createdAt
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// CountByTenant returns the number of subscriptions for a tenant.
func (s *PostgresSubscriptionStore) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM subscriptions WHERE tenant_id = $1`
	if err := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
