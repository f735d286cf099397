package service

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/utils"
)

// Actor is the authenticated caller taken from the access token.
type Actor struct {
	UserID string
	Role   string
}

// IsPlatformAdmin reports whether the actor bypasses tenant assignments.
func (a Actor) IsPlatformAdmin() bool {
	return a.Role == models.UserRoleAdmin
}

// TenantAccessService decides whether an actor may read or write a tenant.
type TenantAccessService struct {
	tenants TenantStore
}

// NewTenantAccessService creates a new TenantAccessService.
func NewTenantAccessService(tenants TenantStore) *TenantAccessService {
	return &TenantAccessService{tenants: tenants}
}

// Authorize loads the tenant and checks the actor's assignment. With write
// set, viewers are rejected. Subscription state is not checked here, see
// RequireWritable.
func (s *TenantAccessService) Authorize(ctx context.Context, actor Actor, tenantID string, write bool) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, utils.NotFound(utils.CodeTenantNotFound, "Tenant not found")
	}

	if actor.IsPlatformAdmin() {
		return tenant, nil
	}

	assignment, err := s.tenants.GetAssignment(ctx, actor.UserID, tenantID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		log.Warn().Str("user_id", actor.UserID).Str("tenant_id", tenantID).Msg("Tenant access denied")
		return nil, utils.Forbidden("No access to this tenant")
	}
	if write && !assignment.CanWrite() {
		return nil, utils.Forbidden("Viewer role cannot modify this tenant")
	}
	return tenant, nil
}

// RequireWritable rejects tenants whose subscription is read-only.
func (s *TenantAccessService) RequireWritable(tenant *models.Tenant) error {
	if tenant.IsReadOnly() {
		return utils.NewAppError(http.StatusForbidden, utils.CodeSubscriptionReadOnly,
			"Subscription does not allow catalog changes")
	}
	return nil
}

// AuthorizeWrite combines Authorize(write) with the subscription check.
func (s *TenantAccessService) AuthorizeWrite(ctx context.Context, actor Actor, tenantID string) (*models.Tenant, error) {
	tenant, err := s.Authorize(ctx, actor, tenantID, true)
	if err != nil {
		return nil, err
	}
	if err := s.RequireWritable(tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}
