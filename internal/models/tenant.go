package models

import (
	"strings"
	"time"
)

// Tenant roles assigned through user_tenants.
const (
	TenantRoleOwner  = "owner"
	TenantRoleAdmin  = "admin"
	TenantRoleMember = "member"
	TenantRoleViewer = "viewer"
)

// Tenant is an isolated merchant account.
type Tenant struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	SubscriptionTier   string    `db:"subscription_tier" json:"subscriptionTier"`
	SubscriptionStatus string    `db:"subscription_status" json:"subscriptionStatus"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

var readOnlyTiers = map[string]bool{
	"google_only": true,
	"readonly":    true,
}

var readOnlyStatuses = map[string]bool{
	"canceled":        true,
	"cancelled":       true,
	"expired":         true,
	"past_due_locked": true,
}

// IsReadOnly reports whether the tenant's subscription forbids catalog writes.
func (t *Tenant) IsReadOnly() bool {
	return readOnlyTiers[strings.ToLower(t.SubscriptionTier)] ||
		readOnlyStatuses[strings.ToLower(t.SubscriptionStatus)]
}

// UserTenant assigns a user to a tenant with a role.
type UserTenant struct {
	UserID    string    `db:"user_id" json:"userId"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// CanWrite reports whether the assignment allows mutations.
func (ut *UserTenant) CanWrite() bool {
	return ut.Role != TenantRoleViewer
}
