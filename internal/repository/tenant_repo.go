package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/storeforge/scanapi/internal/models"
)

// TenantRepository provides data access for tenants and user assignments.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID returns the tenant or nil when absent.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	const q = `
		SELECT id, name, subscription_tier, subscription_status, created_at, updated_at
		FROM tenants WHERE id = $1`
	var t models.Tenant
	if err := r.db.GetContext(ctx, &t, q, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetAssignment returns the user's role assignment for a tenant, or nil.
func (r *TenantRepository) GetAssignment(ctx context.Context, userID, tenantID string) (*models.UserTenant, error) {
	const q = `SELECT user_id, tenant_id, role, created_at FROM user_tenants WHERE user_id = $1 AND tenant_id = $2`
	var ut models.UserTenant
	if err := r.db.GetContext(ctx, &ut, q, userID, tenantID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &ut, nil
}

// Assign upserts the user's role on a tenant. One assignment exists per pair.
func (r *TenantRepository) Assign(ctx context.Context, userID, tenantID, role string) error {
	const q = `
		INSERT INTO user_tenants (user_id, tenant_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.db.ExecContext(ctx, q, userID, tenantID, role)
	return err
}
